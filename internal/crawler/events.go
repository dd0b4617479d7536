package crawler

import (
	"time"

	"github.com/llmstxt-forge/forge/internal/domain"
)

// EventType discriminates the Event union the crawler emits on its event
// channel while a Run is in flight. internal/progress does not read these:
// it builds the SSE stream from the persisted store rows instead.
type EventType string

const (
	EventPageCrawled EventType = "page_crawled"
	EventProgress    EventType = "progress"
	EventCompleted   EventType = "completed"
	EventFailed      EventType = "failed"
)

// Event is one notification emitted during a Run. Page is populated only for
// EventPageCrawled; Counters holds the running totals on every event Run
// emits.
type Event struct {
	Type      EventType
	Page      domain.Page
	Counters  domain.CrawlJobCounters
	Err       error
	EmittedAt time.Time
}
