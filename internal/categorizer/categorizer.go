// Package categorizer assigns each crawled page a fixed category and a
// deterministic relevance score in [0,1], the way internal/extractor's
// KnownDocSelectors maps a DOM shape to a priority-ordered table: here the
// table is path fragments instead of CSS selectors.
package categorizer

import (
	"net/url"
	"strings"
)

// Category is the fixed classification set a Page is assigned to.
type Category string

const (
	CategoryAPIReference   Category = "API Reference"
	CategoryDocumentation  Category = "Documentation"
	CategoryGuides         Category = "Guides"
	CategoryExamples       Category = "Examples"
	CategoryFAQ            Category = "FAQ"
	CategoryBlog           Category = "Blog"
	CategoryChangelog      Category = "Changelog"
	CategoryGettingStarted Category = "Getting Started"
	CategoryAbout          Category = "About"
	CategoryCorePages      Category = "Core Pages"
	CategoryOther          Category = "Other"
)

// categoryRule pairs a category with the case-insensitive path fragments
// that identify it. Order is the match priority: the first rule whose
// fragment appears anywhere in the path wins.
type categoryRule struct {
	category  Category
	fragments []string
}

// priorityTable is checked top to bottom, mirroring
// internal/extractor.getAllSelectors' "first match in priority order wins"
// idiom.
var priorityTable = []categoryRule{
	{CategoryAPIReference, []string{"/api", "/reference", "/api-reference"}},
	{CategoryDocumentation, []string{"/docs", "/documentation", "/doc"}},
	{CategoryGuides, []string{"/guide", "/guides", "/tutorial", "/tutorials", "/howto", "/how-to"}},
	{CategoryExamples, []string{"/example", "/examples", "/sample", "/samples", "/demo", "/demos"}},
	{CategoryFAQ, []string{"/faq", "/faqs"}},
	{CategoryBlog, []string{"/blog", "/news", "/post", "/posts"}},
	{CategoryChangelog, []string{"/changelog", "/changelogs", "/release", "/releases"}},
	{CategoryGettingStarted, []string{"/getting-started", "/getstarted", "/quickstart", "/start"}},
	{CategoryAbout, []string{"/about", "/company", "/team"}},
}

// categoryWeight is spec.md §4.3's fixed category_weight table, the linear
// combination's largest (0.40) term.
var categoryWeight = map[Category]float64{
	CategoryAPIReference:   1.0,
	CategoryDocumentation:  0.9,
	CategoryGuides:         0.85,
	CategoryGettingStarted: 0.85,
	CategoryExamples:       0.75,
	CategoryFAQ:            0.7,
	CategoryCorePages:      0.7,
	CategoryChangelog:      0.5,
	CategoryAbout:          0.4,
	CategoryBlog:           0.4,
	CategoryOther:          0.2,
}

// Result is the categorizer's output for one page.
type Result struct {
	Category  Category
	Relevance float64
}

// Input is everything the relevance formula and path-fragment matcher need.
type Input struct {
	URL             url.URL
	Depth           int
	IsSeed          bool
	SitemapPresence bool
}

// Categorize assigns a Category by matching case-insensitive path fragments
// in priority order, then computes the spec's linear relevance score.
func Categorize(in Input) Result {
	category := classify(in.URL.Path, in.IsSeed)
	relevance := score(category, in.Depth, pathSegments(in.URL.Path), in.SitemapPresence)
	return Result{Category: category, Relevance: relevance}
}

func classify(path string, isSeed bool) Category {
	lower := strings.ToLower(path)

	for _, rule := range priorityTable {
		for _, fragment := range rule.fragments {
			if strings.Contains(lower, fragment) {
				return rule.category
			}
		}
	}

	// Seed URL and any path of length <= 1 segment map to Core Pages unless
	// a stronger signal matched above.
	if isSeed || pathSegments(path) <= 1 {
		return CategoryCorePages
	}

	return CategoryOther
}

// pathSegments counts non-empty "/"-delimited path components.
func pathSegments(path string) int {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return 0
	}
	return len(strings.Split(trimmed, "/"))
}

func score(category Category, depth, segments int, sitemapPresence bool) float64 {
	weight := categoryWeight[category]

	depthTerm := 1 - float64(minInt(depth, 5))/5
	segmentTerm := 1 - float64(minInt(segments, 6))/6
	sitemapTerm := 0.0
	if sitemapPresence {
		sitemapTerm = 1.0
	}

	relevance := 0.40*weight + 0.20*depthTerm + 0.20*segmentTerm + 0.20*sitemapTerm
	return clamp01(relevance)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
