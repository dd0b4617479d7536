// Package domain holds the persistent entities shared across the task
// queue, crawler, scheduler, worker, and HTTP API layers.
package domain

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Site is a crawl target registered through the API.
type Site struct {
	ID                 uuid.UUID
	RootURL            url.URL
	AllowedPathPrefix  []string
	MaxDepth           int
	MaxPages           int
	Concurrency        int
	UserAgent          string
	RobotsUserAgent    string // overrides UserAgent when evaluating robots.txt, if set
	CreatedAt          time.Time
}

// CrawlJobStatus is the terminal/non-terminal lifecycle state of a CrawlJob.
type CrawlJobStatus string

const (
	CrawlJobPending   CrawlJobStatus = "pending"
	CrawlJobRunning   CrawlJobStatus = "running"
	CrawlJobCompleted CrawlJobStatus = "completed"
	CrawlJobFailed    CrawlJobStatus = "failed"
)

// CrawlJob is one BFS crawl run over a Site, seeded either by a direct API
// call or by a fired Schedule. The four page counters are monotonically
// non-decreasing for the lifetime of the run (spec invariant: pages_changed
// = added + updated + removed at completion).
type CrawlJob struct {
	ID           uuid.UUID
	SiteID       uuid.UUID
	Status       CrawlJobStatus
	PagesFound   int
	PagesCrawled int
	PagesChanged int
	PagesSkipped int
	MaxPages     int
	MaxDepth     int
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CrawlJobCounters is the mutable progress snapshot of a running CrawlJob,
// updated by the crawler after every page completes or is skipped.
type CrawlJobCounters struct {
	PagesFound   int
	PagesCrawled int
	PagesChanged int
	PagesSkipped int
}

// TaskStatus is the lease state of a single CrawlTask row.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskClaimed   TaskStatus = "claimed"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// CrawlTask is one unit of work in the durable queue: fetch one URL at one
// BFS depth within one CrawlJob.
type CrawlTask struct {
	ID             uuid.UUID
	CrawlJobID     uuid.UUID
	URL            string // normalized form, see pkg/urlutil.Normalize
	Depth          int
	Priority       int
	Status         TaskStatus
	IdempotencyKey string
	Attempts       int
	MaxAttempts    int
	AvailableAt    time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChangeKind classifies a Page against the prior crawl of the same Site.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeUpdated   ChangeKind = "updated"
	ChangeUnchanged ChangeKind = "unchanged"
	ChangeRemoved   ChangeKind = "removed"
)

// Page is the crawled, extracted, categorized record of one URL within one
// CrawlJob.
type Page struct {
	ID              uuid.UUID
	CrawlJobID      uuid.UUID
	SiteID          uuid.UUID
	URL             string
	CanonicalURL    string
	Title           string
	Description     string
	Headings        []string // H1-H3, in document order
	Content         string   // extracted body, converted to Markdown
	Category        string
	RelevanceScore  float64
	ContentHash     string
	Change          ChangeKind
	HTTPStatus      int
	SitemapPresence bool
	Depth           int // BFS depth from the crawl root; must be <= CrawlJob.MaxDepth
	FirstSeenAt     time.Time // carried forward from the prior crawl's page at the same (site_id, url)
	LastSeenAt      time.Time
	FetchedAt       time.Time
}

// GeneratedFile is one rendered llms.txt (or llms-full.txt) artifact for a
// completed CrawlJob.
type GeneratedFile struct {
	ID         uuid.UUID
	CrawlJobID uuid.UUID
	SiteID     uuid.UUID
	Kind       string // "llms.txt" or "llms-full.txt"
	Content    []byte
	ContentSHA string
	CreatedAt  time.Time
}

// Schedule is a cron-driven recurring crawl definition for a Site.
type Schedule struct {
	ID         uuid.UUID
	SiteID     uuid.UUID
	CronExpr   string
	Timezone   string // IANA zone name Next is evaluated in; defaults to "UTC"
	Enabled    bool
	NextRunAt  time.Time
	LastRunAt  *time.Time
	CreatedAt  time.Time
}
