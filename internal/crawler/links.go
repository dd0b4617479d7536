package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/llmstxt-forge/forge/pkg/urlutil"
)

// extractLinks parses htmlBytes and returns every <a href> target resolved
// against base, normalized, and deduplicated. Non-HTTP schemes (mailto:,
// tel:, javascript:) and same-page fragment-only links are dropped here,
// before scope/robots filtering runs.
func extractLinks(base url.URL, htmlBytes []byte) ([]url.URL, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []url.URL
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if ref.Scheme != "" && ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}

		resolved := base.ResolveReference(ref)
		normalized := urlutil.Normalize(*resolved)
		key := normalized.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, normalized)
	})

	return links, nil
}
