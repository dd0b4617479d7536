package frontier

/*
 Frontier - manages crawl state & ordering
*/

import (
	"net/url"
)

// CrawlToken
// Frontier-issued, per-URL crawl Token
// It represents: "This URL, at this depth, in this deterministic order, is next"
// It contains no semantic policy decisions.
// It represents ordering + depth metadata only.
type CrawlToken struct {
	url   url.URL
	depth int
}

// NewCrawlToken creates a new CrawlToken with the given URL and depth.
// This constructor is provided for testing and internal use.
func NewCrawlToken(u url.URL, depth int) CrawlToken {
	return CrawlToken{
		url:   u,
		depth: depth,
	}
}

func (c *CrawlToken) URL() url.URL {
	return c.url
}

func (c *CrawlToken) Depth() int {
	return c.depth
}
