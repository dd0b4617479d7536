package metadata

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// MetadataSink is the observability port threaded through every pipeline
// stage. It is observational only: nothing reading from a MetadataSink may
// feed back into scheduling, retry, or abort decisions.
type MetadataSink interface {
	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		retryCount int,
		crawlDepth int,
	)
	RecordAssetFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		retryCount int,
	)
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		errorString string,
		attrs []Attribute,
	)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer receives the terminal, derived summary of a completed crawl
// job exactly once, after the crawl has already decided to stop.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration)
}

// Recorder is the production MetadataSink/CrawlFinalizer. It emits
// structured log lines via zerolog; it holds no state that could be read
// back to influence crawl behavior.
type Recorder struct {
	log zerolog.Logger
}

// NewRecorder creates a Recorder scoped to component (e.g. a crawl job ID,
// a worker name). The component tag is attached to every emitted line so
// concurrent crawls interleaved in one process log stream stay attributable.
func NewRecorder(component string) Recorder {
	return Recorder{
		log: zerolog.New(os.Stderr).With().
			Timestamp().
			Str("component", component).
			Logger(),
	}
}

// NewRecorderWithLogger allows injecting a preconfigured logger, e.g. one
// writing JSON to a file instead of the console, or a no-op logger in tests.
func NewRecorderWithLogger(log zerolog.Logger) Recorder {
	return Recorder{log: log}
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	event := r.log.Warn().
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Int("cause", int(cause)).
		Str("cause_name", causeName(cause))
	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	event.Msg(errorString)
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.log.Debug().
		Str("url", fetchUrl).
		Int("status", httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int("depth", crawlDepth).
		Msg("fetch")
}

func (r *Recorder) RecordAssetFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
	r.log.Debug().
		Str("url", fetchUrl).
		Int("status", httpStatus).
		Dur("duration", duration).
		Int("retry_count", retryCount).
		Msg("asset fetch")
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	event := r.log.Info().Str("kind", string(kind)).Str("path", path)
	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	event.Msg("artifact written")
}

func (r *Recorder) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
	stats := crawlStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		totalAssets: totalAssets,
		durationMs:  duration.Milliseconds(),
	}
	r.log.Info().
		Int("total_pages", stats.totalPages).
		Int("total_errors", stats.totalErrors).
		Int("total_assets", stats.totalAssets).
		Int64("duration_ms", stats.durationMs).
		Msg("crawl finished")
}

func causeName(cause ErrorCause) string {
	switch cause {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}

var (
	_ MetadataSink   = (*Recorder)(nil)
	_ CrawlFinalizer = (*Recorder)(nil)
)
