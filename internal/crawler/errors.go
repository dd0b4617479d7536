package crawler

import (
	"fmt"

	"github.com/llmstxt-forge/forge/pkg/failure"
)

// ErrorCause classifies why a crawl-level operation failed, the same
// Message/Retryable/Cause shape every pipeline package in this tree uses
// (fetcher.FetchError, robots.RobotsError, extractor.ExtractionError).
type ErrorCause string

const (
	ErrCauseFetchFailed    ErrorCause = "fetch failed"
	ErrCauseRobotsDenied   ErrorCause = "disallowed by robots.txt"
	ErrCauseExtractFailed  ErrorCause = "extraction failed"
	ErrCauseOutOfScope     ErrorCause = "link out of crawl scope"
	ErrCauseInvalidURL     ErrorCause = "malformed url"
	ErrCausePersistFailure ErrorCause = "failed to persist page"
)

// CrawlError is the ClassifiedError raised by the crawler's own control
// flow (as opposed to errors bubbled up unwrapped from fetcher/robots/
// extractor, which already implement failure.ClassifiedError themselves).
type CrawlError struct {
	Message   string
	Retryable bool
	Cause     ErrorCause
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawler error: %s: %s", e.Cause, e.Message)
}

func (e *CrawlError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *CrawlError) IsRetryable() bool {
	return e.Retryable
}

var _ failure.ClassifiedError = (*CrawlError)(nil)
