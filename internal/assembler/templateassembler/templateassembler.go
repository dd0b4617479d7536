// Package templateassembler implements the deterministic default
// Assembler: a fixed Markdown template filled from categorized pages, no
// external calls. It is the assembler used whenever no LLM API key is
// configured.
//
// It validates its own output the way internal/normalize validates a
// sanitized page before persisting it: parse the rendered Markdown with
// gomarkdown and walk the AST checking the same structural invariants
// (exactly one H1, no skipped heading levels) before returning it.
package templateassembler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/llmstxt-forge/forge/internal/assembler"
	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/metadata"
)

// TemplateAssembler renders llms.txt as: an H1 with the site's host, an H2
// per non-empty category in spec.md's fixed order, and one bullet per page
// linking its title (or URL, if the title is blank) with its description.
type TemplateAssembler struct {
	sink metadata.MetadataSink
}

func New(sink metadata.MetadataSink) *TemplateAssembler {
	return &TemplateAssembler{sink: sink}
}

func (a *TemplateAssembler) Assemble(ctx context.Context, req assembler.Request) ([]byte, error) {
	if len(req.Pages) == 0 {
		err := &assembler.AssemblerError{
			Message:   "no pages to assemble",
			Retryable: false,
			Cause:     assembler.ErrCauseEmptyInput,
		}
		a.sink.RecordError(time.Now(), "templateassembler", "Assemble", metadata.CauseInvariantViolation, err.Error(), nil)
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", req.Site.RootURL.Host)
	if desc := rootDescription(req.Pages, req.Site.RootURL.String()); desc != "" {
		fmt.Fprintf(&buf, "> %s\n\n", desc)
	}

	for _, section := range assembler.GroupByCategory(req.Pages) {
		fmt.Fprintf(&buf, "## %s\n\n", section.Name)
		for _, page := range section.Pages {
			writeBullet(&buf, page)
		}
		buf.WriteString("\n")
	}

	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = append(out, '\n')

	if err := validateStructure(out); err != nil {
		a.sink.RecordError(time.Now(), "templateassembler", "Assemble", metadata.CauseInvariantViolation, err.Error(), nil)
		return nil, err
	}

	return out, nil
}

func writeBullet(buf *bytes.Buffer, page domain.Page) {
	label := page.Title
	if label == "" {
		label = page.URL
	}
	label = stripMarkdownSyntax(label)

	fmt.Fprintf(buf, "- [%s](%s)", label, page.URL)
	if page.Description != "" {
		fmt.Fprintf(buf, ": %s", stripMarkdownSyntax(page.Description))
	}
	buf.WriteString("\n")
}

// stripMarkdownSyntax neutralizes characters that would otherwise corrupt
// the surrounding link/bullet syntax if they appeared verbatim in extracted
// page text.
func stripMarkdownSyntax(s string) string {
	replacer := strings.NewReplacer("[", "(", "]", ")", "\n", " ")
	return strings.TrimSpace(replacer.Replace(s))
}

// rootDescription prefers the seed page's extracted description as the
// document's summary line.
func rootDescription(pages []domain.Page, rootURL string) string {
	for _, p := range pages {
		if p.URL == rootURL && p.Description != "" {
			return stripMarkdownSyntax(p.Description)
		}
	}
	return ""
}

// validateStructure mirrors internal/normalize's AST-walk check: exactly
// one H1, no skipped heading levels.
func validateStructure(content []byte) error {
	p := parser.New()
	doc := markdown.Parse(content, p)

	var headings []*ast.Heading
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if h, ok := node.(*ast.Heading); ok && entering {
			headings = append(headings, h)
		}
		return ast.GoToNext
	})

	h1Count := 0
	for _, h := range headings {
		if h.Level == 1 {
			h1Count++
		}
	}
	if h1Count != 1 {
		return &assembler.AssemblerError{
			Message:   fmt.Sprintf("document has %d H1 headings, expected exactly one", h1Count),
			Retryable: false,
			Cause:     assembler.ErrCauseStructureInvalid,
		}
	}

	prevLevel := 0
	for _, h := range headings {
		if h.Level > prevLevel+1 && prevLevel != 0 {
			return &assembler.AssemblerError{
				Message:   fmt.Sprintf("heading level skipped: H%d follows H%d", h.Level, prevLevel),
				Retryable: false,
				Cause:     assembler.ErrCauseStructureInvalid,
			}
		}
		prevLevel = h.Level
	}

	return nil
}
