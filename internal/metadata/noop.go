package metadata

import "time"

// NoopSink is a zero-value MetadataSink/CrawlFinalizer that discards
// everything. Tests embed it to satisfy the interface and override only the
// methods they want to assert on.
type NoopSink struct{}

func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}
func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int)               {}
func (NoopSink) RecordAssetFetch(string, int, time.Duration, int)                       {}
func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute)                       {}
func (NoopSink) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
}

var (
	_ MetadataSink   = NoopSink{}
	_ CrawlFinalizer = NoopSink{}
)
