package worker

import (
	"fmt"

	"github.com/llmstxt-forge/forge/pkg/failure"
)

type ErrorCause string

const (
	ErrCauseCrawlFailed      ErrorCause = "crawl failed"
	ErrCauseAssemblyFailed   ErrorCause = "assembly failed"
	ErrCauseStorageFailed    ErrorCause = "storage failed"
	ErrCauseSiteLookupFailed ErrorCause = "site lookup failed"
)

// WorkerError is the ClassifiedError for failures in the claim-run-finish
// path. Retryable mirrors whatever the underlying cause reported; a
// deliberately non-retryable WorkerError sends the task straight to
// dead_letter instead of burning the retry budget.
type WorkerError struct {
	Message   string
	Retryable bool
	Cause     ErrorCause
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker error: %s: %s", e.Cause, e.Message)
}

func (e *WorkerError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*WorkerError)(nil)
