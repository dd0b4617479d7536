package assembler

import (
	"fmt"

	"github.com/llmstxt-forge/forge/pkg/failure"
)

type ErrorCause string

const (
	ErrCauseEmptyInput       ErrorCause = "empty page set"
	ErrCauseStructureInvalid ErrorCause = "generated document failed structural validation"
	ErrCauseProviderFailure  ErrorCause = "external assembler provider failure"
)

// AssemblerError is the ClassifiedError for a failed document assembly. A
// provider failure (rate limit, transient 5xx) is retryable; a structurally
// broken render is a bug and never succeeds on retry.
type AssemblerError struct {
	Message   string
	Retryable bool
	Cause     ErrorCause
}

func (e *AssemblerError) Error() string {
	return fmt.Sprintf("assembler error: %s: %s", e.Cause, e.Message)
}

func (e *AssemblerError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*AssemblerError)(nil)
