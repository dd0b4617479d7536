package templateassembler_test

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/llmstxt-forge/forge/internal/assembler"
	"github.com/llmstxt-forge/forge/internal/assembler/templateassembler"
	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/metadata"
)

func mustParse(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return *u
}

func TestAssembleProducesOneH1AndOrderedSections(t *testing.T) {
	root := mustParse(t, "https://example.com/")
	site := domain.Site{ID: uuid.New(), RootURL: root}

	pages := []domain.Page{
		{URL: "https://example.com/", Title: "Example", Description: "The example site.", Category: "Core Pages", RelevanceScore: 0.7},
		{URL: "https://example.com/api/widgets", Title: "Widgets API", Description: "Widget endpoints.", Category: "API Reference", RelevanceScore: 0.95},
		{URL: "https://example.com/docs/guide", Title: "Guide", Description: "How to use it.", Category: "Guides", RelevanceScore: 0.8},
	}

	a := templateassembler.New(metadata.NoopSink{})
	out, err := a.Assemble(context.Background(), assembler.Request{Site: site, Pages: pages})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	text := string(out)
	if !strings.HasPrefix(text, "# example.com\n") {
		t.Errorf("expected document to start with site H1, got %q", text[:40])
	}
	apiIdx := strings.Index(text, "## API Reference")
	guidesIdx := strings.Index(text, "## Guides")
	coreIdx := strings.Index(text, "## Core Pages")
	if apiIdx == -1 || guidesIdx == -1 || coreIdx == -1 {
		t.Fatalf("expected all three sections present, got:\n%s", text)
	}
	if !(apiIdx < guidesIdx && guidesIdx < coreIdx) {
		t.Errorf("expected section order API Reference < Guides < Core Pages, got:\n%s", text)
	}
	if !strings.Contains(text, "[Widgets API](https://example.com/api/widgets): Widget endpoints.") {
		t.Errorf("expected a bullet for the widgets page, got:\n%s", text)
	}
	if !strings.Contains(text, "> The example site.") {
		t.Errorf("expected the root page's description as the summary blockquote, got:\n%s", text)
	}
}

func TestAssembleRejectsEmptyPageSet(t *testing.T) {
	a := templateassembler.New(metadata.NoopSink{})
	site := domain.Site{ID: uuid.New(), RootURL: mustParse(t, "https://example.com/")}
	if _, err := a.Assemble(context.Background(), assembler.Request{Site: site}); err == nil {
		t.Fatal("expected an error for an empty page set")
	}
}

func TestAssembleNeutralizesBracketsInExtractedText(t *testing.T) {
	site := domain.Site{ID: uuid.New(), RootURL: mustParse(t, "https://example.com/")}
	pages := []domain.Page{
		{URL: "https://example.com/x", Title: "Weird [Title]", Description: "has [brackets] in it", Category: "Other", RelevanceScore: 0.2},
	}
	a := templateassembler.New(metadata.NoopSink{})
	out, err := a.Assemble(context.Background(), assembler.Request{Site: site, Pages: pages})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if strings.Contains(string(out), "[Weird [Title]]") {
		t.Errorf("expected embedded brackets to be neutralized, got:\n%s", out)
	}
}
