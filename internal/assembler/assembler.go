// Package assembler defines the polymorphic capability the worker invokes
// exactly once per successful crawl with pages_changed > 0: summarize a
// site's categorized pages into one Markdown llms.txt document. Concrete
// variants live in templateassembler (deterministic, default) and
// llmassembler (external LLM call, used when an API key is configured).
package assembler

import (
	"bytes"
	"context"
	"fmt"

	"github.com/llmstxt-forge/forge/internal/domain"
)

// Request is everything an Assembler needs to render one document. Pages
// is the full current page set for the site (not just this run's diff),
// ordered however the caller found convenient — implementations sort by
// category and relevance themselves.
type Request struct {
	Site     domain.Site
	CrawlJob domain.CrawlJob
	Pages    []domain.Page
}

// Assembler renders pages into one Markdown document. Implementations must
// be deterministic given the same Request where the spec requires it
// (TemplateAssembler); ExternalLLMAssembler is explicitly exempted from
// that requirement by spec.md's own polymorphism note.
type Assembler interface {
	Assemble(ctx context.Context, req Request) ([]byte, error)
}

// categoryOrder is the section order spec.md fixes for the generated
// document, distinct from categorizer's match-priority order.
var categoryOrder = []string{
	"Getting Started",
	"Documentation",
	"API Reference",
	"Guides",
	"Examples",
	"FAQ",
	"Core Pages",
	"Changelog",
	"About",
	"Blog",
	"Other",
}

// GroupByCategory buckets pages into categoryOrder's sections, dropping
// empty sections, and sorts each bucket by descending relevance then title.
// Both assembler variants build on this so the two renderings only differ
// in how a bucket's entries are worded.
func GroupByCategory(pages []domain.Page) []Section {
	buckets := make(map[string][]domain.Page, len(categoryOrder))
	for _, p := range pages {
		buckets[p.Category] = append(buckets[p.Category], p)
	}

	sections := make([]Section, 0, len(categoryOrder))
	for _, name := range categoryOrder {
		bucket := buckets[name]
		if len(bucket) == 0 {
			continue
		}
		sortByRelevance(bucket)
		sections = append(sections, Section{Name: name, Pages: bucket})
	}
	return sections
}

// Section is one category's worth of pages, already ordered for rendering.
type Section struct {
	Name  string
	Pages []domain.Page
}

func sortByRelevance(pages []domain.Page) {
	// Insertion sort: page counts per crawl are small (MaxPages defaults to
	// 200) and this keeps the tie-break (title, ascending) trivial to read.
	for i := 1; i < len(pages); i++ {
		j := i
		for j > 0 && less(pages[j], pages[j-1]) {
			pages[j], pages[j-1] = pages[j-1], pages[j]
			j--
		}
	}
}

func less(a, b domain.Page) bool {
	if a.RelevanceScore != b.RelevanceScore {
		return a.RelevanceScore > b.RelevanceScore
	}
	return a.Title < b.Title
}

// AssembleFullText renders the llms-full.txt companion document: the same
// category grouping as llms.txt, but with each page's full Markdown body
// inlined under its heading instead of a one-line bullet. Unlike Assembler,
// this is not polymorphic — both the deterministic and LLM-backed crawls
// produce the same mechanical concatenation, since there is nothing an LLM
// call could usefully add to a verbatim content dump.
func AssembleFullText(req Request) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", req.Site.RootURL.Host)

	for _, section := range GroupByCategory(req.Pages) {
		fmt.Fprintf(&buf, "## %s\n\n", section.Name)
		for _, page := range section.Pages {
			label := page.Title
			if label == "" {
				label = page.URL
			}
			fmt.Fprintf(&buf, "### %s\n\n", label)
			fmt.Fprintf(&buf, "Source: %s\n\n", page.URL)
			if page.Content != "" {
				buf.WriteString(page.Content)
				buf.WriteString("\n\n")
			}
		}
	}

	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = append(out, '\n')
	return out
}
