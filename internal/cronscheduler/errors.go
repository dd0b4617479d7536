package cronscheduler

import (
	"fmt"

	"github.com/llmstxt-forge/forge/pkg/failure"
)

type ErrorCause string

const (
	ErrCauseInvalidExpression ErrorCause = "invalid cron expression"
	ErrCauseSiteLookupFailed  ErrorCause = "site lookup failed"
	ErrCauseEnqueueFailed     ErrorCause = "enqueue failed"
	ErrCauseAdvanceFailed     ErrorCause = "advance schedule failed"
)

// ScheduleError is the ClassifiedError for failures in the cron fire path.
// A bad cron expression is never retryable — it will fail identically on
// the next tick until someone fixes the Schedule row.
type ScheduleError struct {
	Message   string
	Retryable bool
	Cause     ErrorCause
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("cronscheduler error: %s: %s", e.Cause, e.Message)
}

func (e *ScheduleError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*ScheduleError)(nil)
