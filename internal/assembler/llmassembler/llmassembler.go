// Package llmassembler implements the ExternalLLMAssembler variant: it
// hands the categorized page set to an Anthropic model and returns
// whatever Markdown it produces verbatim. Per spec.md's own scope note,
// the LLM call is an opaque external collaborator — this package owns only
// the request/response plumbing and error classification, not the
// document's semantic quality.
package llmassembler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/llmstxt-forge/forge/internal/assembler"
	"github.com/llmstxt-forge/forge/internal/metadata"
)

const defaultMaxTokens = 4096

// LLMAssembler renders llms.txt by sending the categorized page list to an
// Anthropic model as a single prompt turn.
type LLMAssembler struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	sink      metadata.MetadataSink
}

func New(apiKey, model string, sink metadata.MetadataSink) *LLMAssembler {
	return &LLMAssembler{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: defaultMaxTokens,
		timeout:   30 * time.Second,
		sink:      sink,
	}
}

func (a *LLMAssembler) Assemble(ctx context.Context, req assembler.Request) ([]byte, error) {
	if len(req.Pages) == 0 {
		return nil, &assembler.AssemblerError{
			Message:   "no pages to assemble",
			Retryable: false,
			Cause:     assembler.ErrCauseEmptyInput,
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: "You write llms.txt files: a single Markdown document with one H1 " +
				"(the site name), then an H2 per category, then a bulleted list of " +
				"page links with one-line descriptions. Output only the document."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(promptFor(req))),
		},
	})
	if err != nil {
		classified := &assembler.AssemblerError{
			Message:   err.Error(),
			Retryable: isRetryable(err),
			Cause:     assembler.ErrCauseProviderFailure,
		}
		a.sink.RecordError(time.Now(), "llmassembler", "Assemble", metadata.CauseUnknown, err.Error(), nil)
		return nil, classified
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return nil, &assembler.AssemblerError{
			Message:   "model returned no text content",
			Retryable: true,
			Cause:     assembler.ErrCauseProviderFailure,
		}
	}

	return []byte(out.String()), nil
}

func promptFor(req assembler.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\n\nPages, grouped by category:\n\n", req.Site.RootURL.String())
	for _, section := range assembler.GroupByCategory(req.Pages) {
		fmt.Fprintf(&b, "## %s\n", section.Name)
		for _, p := range section.Pages {
			title := p.Title
			if title == "" {
				title = p.URL
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", title, p.URL, p.Description)
		}
	}
	return b.String()
}

// isRetryable treats rate limits and server-side failures as transient; a
// malformed request or auth failure never succeeds on retry. Matched by
// substring against the error string rather than a typed status code, the
// same way the pack's other LLM client classifies provider errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range []string{"429", "500", "502", "503", "504", "rate_limit", "overloaded"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
