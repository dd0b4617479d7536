package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/llmstxt-forge/forge/pkg/urlutil"
)

// sitemapURLSet is the minimal shape of a sitemap.xml document this crawler
// needs: the <loc> of every listed URL. Sitemap index files (<sitemapindex>)
// are out of scope; a site with only a sitemap index is treated as having
// no sitemap, the same as a 404.
type sitemapURLSet struct {
	XMLName xml.Name       `xml:"urlset"`
	URLs    []sitemapEntry `xml:"url"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// fetchSitemap fetches and parses sitemap.xml at the seed's host, returning
// the set of normalized URLs it lists. This is a deliberately narrow,
// independent HTTP path: internal/fetcher.HtmlFetcher strictly rejects
// non-text/html content types, so it cannot be reused for an XML document.
// A missing, unreachable, or unparsable sitemap is not an error — it just
// means no sitemap_presence signal feeds the categorizer/relevance score.
func fetchSitemap(ctx context.Context, client *http.Client, seed url.URL, userAgent string) (map[string]struct{}, error) {
	sitemapURL := url.URL{Scheme: seed.Scheme, Host: seed.Host, Path: "/sitemap.xml"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, err
	}

	var parsed sitemapURLSet
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(parsed.URLs))
	for _, entry := range parsed.URLs {
		u, err := url.Parse(entry.Loc)
		if err != nil {
			continue
		}
		present[urlutil.Normalize(*u).String()] = struct{}{}
	}
	return present, nil
}

// newSitemapHTTPClient builds the bounded-timeout client fetchSitemap uses,
// the same 30s ceiling internal/robots.RobotsFetcher applies to robots.txt.
func newSitemapHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
