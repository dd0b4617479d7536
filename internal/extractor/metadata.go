package extractor

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/llmstxt-forge/forge/pkg/failure"
)

// PageMetadata is the {title, description, headings[1..3], og:*, canonical}
// tuple a crawl persists per Page. Headings are collected in document order
// and deduplicated; Title follows og:title -> <title> -> first <h1>, and
// Description follows meta description -> og:description -> first
// paragraph.
type PageMetadata struct {
	Title       string
	Description string
	Headings    []string
	Canonical   string
	OGTags      map[string]string
	Content     string // isolated content container, converted to Markdown
}

// MetadataExtractor parses raw HTML into a PageMetadata tuple. It reuses
// DomExtractor's content-container heuristic (Layer 1-3 selector priority)
// to scope heading collection to the meaningful body instead of chrome/nav,
// and renders that same content container to Markdown.
type MetadataExtractor struct {
	content DomExtractor
}

// NewMetadataExtractor builds a MetadataExtractor. The DomExtractor supplied
// is used only to locate the content container for heading extraction; its
// own ExtractionError never escapes here because a missing content
// container just means headings fall back to a whole-document scan rather
// than failing the page.
func NewMetadataExtractor(content DomExtractor) MetadataExtractor {
	return MetadataExtractor{content: content}
}

// Extract parses htmlBytes and returns the categorizer/change-tracker input
// tuple. It never returns an error for malformed HTML: golang.org/x/net/html
// tolerantly repairs broken markup the way a browser would, and a page with
// no recognizable metadata simply yields a mostly-empty PageMetadata, which
// the categorizer and relevance formula handle as "Other" with low score.
func (m *MetadataExtractor) Extract(sourceURL url.URL, htmlBytes []byte) (PageMetadata, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return PageMetadata{}, &ExtractionError{
			Message:   "failed to parse HTML for metadata: " + err.Error(),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	og := extractOpenGraph(doc)
	contentResult, contentErr := m.content.Extract(sourceURL, htmlBytes)

	meta := PageMetadata{
		Title:       extractTitle(doc, og),
		Description: extractDescription(doc, og),
		Headings:    m.extractHeadings(doc, contentResult, contentErr),
		Canonical:   extractCanonical(doc),
		OGTags:      og,
		Content:     renderMarkdown(contentResult, contentErr),
	}
	return meta, nil
}

func extractOpenGraph(doc *goquery.Document) map[string]string {
	og := make(map[string]string)
	doc.Find(`meta[property^="og:"]`).Each(func(_ int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		property = strings.TrimPrefix(property, "og:")
		if property != "" && content != "" {
			og[property] = content
		}
	})
	return og
}

// extractTitle follows the precedence og:title -> <title> -> first <h1>.
func extractTitle(doc *goquery.Document, og map[string]string) string {
	if t := strings.TrimSpace(og["title"]); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractDescription follows the precedence meta[name=description] ->
// og:description -> first paragraph, truncated to 240 characters.
func extractDescription(doc *goquery.Document, og map[string]string) string {
	if content, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		if d := strings.TrimSpace(content); d != "" {
			return d
		}
	}
	if d := strings.TrimSpace(og["description"]); d != "" {
		return d
	}
	firstParagraph := strings.TrimSpace(doc.Find("p").First().Text())
	const maxLen = 240
	if len(firstParagraph) > maxLen {
		return firstParagraph[:maxLen]
	}
	return firstParagraph
}

func extractCanonical(doc *goquery.Document) string {
	href, _ := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	return strings.TrimSpace(href)
}

// extractHeadings collects h1-h3 text in document order, trimmed and
// deduplicated, scoped to the DomExtractor's content container when one was
// found so navigation/footer headings don't pollute the result.
func (m *MetadataExtractor) extractHeadings(doc *goquery.Document, contentResult ExtractionResult, contentErr failure.ClassifiedError) []string {
	var scope *goquery.Selection
	if contentErr == nil && contentResult.ContentNode != nil {
		scope = goquery.NewDocumentFromNode(contentResult.ContentNode).Selection
	} else {
		scope = doc.Selection
	}

	seen := make(map[string]struct{})
	var headings []string
	scope.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		headings = append(headings, text)
	})
	return headings
}

// renderMarkdown converts the isolated content container to GitHub-flavored
// Markdown. A page whose content container couldn't be isolated renders as
// empty Markdown rather than failing the whole extraction — the same
// tolerant fallback extractHeadings applies.
func renderMarkdown(contentResult ExtractionResult, contentErr failure.ClassifiedError) string {
	if contentErr != nil || contentResult.ContentNode == nil {
		return ""
	}
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	markdown, err := conv.ConvertNode(contentResult.ContentNode)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(markdown))
}
