// Package progress turns persisted CrawlJob/Page rows into the replayable
// event stream internal/httpapi's SSE handler serializes to observers. The
// worker and the API run as separate processes (spec.md's isolation
// requirement), so this reads from store.Store rather than an in-memory
// bus: every observer, live or reconnecting mid-crawl, sees the same
// events in the same order because they are all derived from the same
// rows.
package progress

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/llmstxt-forge/forge/internal/domain"
)

// EventType discriminates the Snapshot union sent to an observer.
type EventType string

const (
	EventPageCrawled EventType = "page_crawled"
	EventProgress    EventType = "progress"
	EventCompleted   EventType = "completed"
	EventFailed      EventType = "failed"
	EventHeartbeat   EventType = "heartbeat"
)

// Snapshot is one frame of the stream. Page is populated only for
// EventPageCrawled; Counters for EventProgress, EventCompleted and
// EventFailed; Error only for EventFailed. A heartbeat carries none of
// them. It is an immutable value type — the SSE handler's only job is
// to serialize it, never to mutate or enrich it.
type Snapshot struct {
	Type      EventType
	Page      domain.Page
	Counters  domain.CrawlJobCounters
	Error     string
	EmittedAt time.Time
}

// PageLister is the read side of store.PageStore this package depends on.
type PageLister interface {
	ListPages(ctx context.Context, crawlJobID uuid.UUID) ([]domain.Page, error)
}

// JobGetter is the read side of store.CrawlJobStore this package depends on.
type JobGetter interface {
	GetCrawlJob(ctx context.Context, id uuid.UUID) (domain.CrawlJob, error)
}

// DefaultPollInterval matches spec.md's documented 1s progress-poll cadence.
const DefaultPollInterval = time.Second

// DefaultKeepalive bounds how long an observer goes without a frame before
// a synthetic heartbeat is sent, keeping intermediaries from timing out the
// connection per spec.md's 15s requirement.
const DefaultKeepalive = 15 * time.Second

// Poller drives one observer's stream for one CrawlJob.
type Poller struct {
	pages        PageLister
	jobs         JobGetter
	pollInterval time.Duration
	keepalive    time.Duration
}

func New(pages PageLister, jobs JobGetter) *Poller {
	return &Poller{
		pages:        pages,
		jobs:         jobs,
		pollInterval: DefaultPollInterval,
		keepalive:    DefaultKeepalive,
	}
}

func (p *Poller) WithPollInterval(d time.Duration) *Poller { p.pollInterval = d; return p }
func (p *Poller) WithKeepalive(d time.Duration) *Poller    { p.keepalive = d; return p }

// Stream replays every persisted Page for jobID oldest first, then polls
// for new pages and counter changes every pollInterval, until the job
// reaches a terminal status (at which point it emits Completed or Failed
// and closes the channel) or ctx is cancelled. Page.ID is a random UUID,
// not an ordering key, so "oldest first" is by FetchedAt with ID as a
// stable tiebreak for same-instant fetches.
func (p *Poller) Stream(ctx context.Context, jobID uuid.UUID) <-chan Snapshot {
	out := make(chan Snapshot)
	go p.run(ctx, jobID, out)
	return out
}

func (p *Poller) run(ctx context.Context, jobID uuid.UUID, out chan<- Snapshot) {
	defer close(out)

	seen := make(map[uuid.UUID]struct{})
	lastEmit := time.Now()
	emit := func(s Snapshot) bool {
		s.EmittedAt = time.Now()
		select {
		case out <- s:
			lastEmit = s.EmittedAt
			return true
		case <-ctx.Done():
			return false
		}
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		pages, err := p.pages.ListPages(ctx, jobID)
		if err == nil {
			for _, page := range sortedUnseen(pages, seen) {
				seen[page.ID] = struct{}{}
				if !emit(Snapshot{Type: EventPageCrawled, Page: page}) {
					return
				}
			}
		}

		job, err := p.jobs.GetCrawlJob(ctx, jobID)
		if err == nil {
			counters := countersOf(job)
			if !emit(Snapshot{Type: EventProgress, Counters: counters}) {
				return
			}
			switch job.Status {
			case domain.CrawlJobCompleted:
				emit(Snapshot{Type: EventCompleted, Counters: counters})
				return
			case domain.CrawlJobFailed:
				emit(Snapshot{Type: EventFailed, Counters: counters, Error: job.ErrorMessage})
				return
			}
		}

		if time.Since(lastEmit) >= p.keepalive {
			if !emit(Snapshot{Type: EventHeartbeat}) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func countersOf(job domain.CrawlJob) domain.CrawlJobCounters {
	return domain.CrawlJobCounters{
		PagesFound:   job.PagesFound,
		PagesCrawled: job.PagesCrawled,
		PagesChanged: job.PagesChanged,
		PagesSkipped: job.PagesSkipped,
	}
}

// sortedUnseen returns pages not already in seen, ordered by FetchedAt
// ascending then ID as a tiebreak.
func sortedUnseen(pages []domain.Page, seen map[uuid.UUID]struct{}) []domain.Page {
	var fresh []domain.Page
	for _, page := range pages {
		if _, ok := seen[page.ID]; !ok {
			fresh = append(fresh, page)
		}
	}
	sort.Slice(fresh, func(i, j int) bool {
		if !fresh[i].FetchedAt.Equal(fresh[j].FetchedAt) {
			return fresh[i].FetchedAt.Before(fresh[j].FetchedAt)
		}
		return fresh[i].ID.String() < fresh[j].ID.String()
	})
	return fresh
}
