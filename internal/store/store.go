// Package store defines the persistence port used by the queue, crawler,
// scheduler, worker, and HTTP API layers. The only production adapter is
// internal/store/postgres; internal/store/memory backs unit tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/llmstxt-forge/forge/internal/domain"
)

// ErrNotFound is returned when a lookup by ID finds no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrIdempotencyConflict is returned by EnqueueTask when a task with the
// same idempotency key already exists for the job.
var ErrIdempotencyConflict = errors.New("store: idempotency key already exists")

// ErrLeaseLost is returned by Heartbeat/CompleteTask/FailTask when the
// caller no longer holds the task's lease (it expired and was reclaimed,
// or never belonged to the caller).
var ErrLeaseLost = errors.New("store: lease lost")

// Store is the full persistence port. Production code depends on this
// interface, never on *postgres.Store directly, so the worker/crawler/API
// layers can be exercised against store/memory in tests.
type Store interface {
	SiteStore
	CrawlJobStore
	TaskQueueStore
	PageStore
	GeneratedFileStore
	ScheduleStore
}

type SiteStore interface {
	CreateSite(ctx context.Context, site domain.Site) (domain.Site, error)
	GetSite(ctx context.Context, id uuid.UUID) (domain.Site, error)
}

type CrawlJobStore interface {
	CreateCrawlJob(ctx context.Context, job domain.CrawlJob) (domain.CrawlJob, error)
	GetCrawlJob(ctx context.Context, id uuid.UUID) (domain.CrawlJob, error)
	// UpdateCrawlJobCounters applies a progress snapshot without touching
	// status; called frequently (after every page) so it never mutates
	// lifecycle fields.
	UpdateCrawlJobCounters(ctx context.Context, id uuid.UUID, counters domain.CrawlJobCounters) error
	// TransitionCrawlJob moves status (running/completed/failed), stamping
	// started_at/finished_at and error_message as appropriate. Called once
	// at the start and once at the end of a run.
	TransitionCrawlJob(ctx context.Context, id uuid.UUID, status domain.CrawlJobStatus, errMsg string) error
	// LatestCompletedCrawlJob returns the most recently completed CrawlJob
	// for siteID other than excludeJobID, used to diff the current run's
	// seen URLs against the prior run's for removed-page classification.
	LatestCompletedCrawlJob(ctx context.Context, siteID uuid.UUID, excludeJobID uuid.UUID) (domain.CrawlJob, bool, error)
	// DeleteCrawlJob removes a CrawlJob outright. Used to roll back a job
	// created speculatively ahead of an Enqueue call that turns out to be
	// an idempotency-key duplicate.
	DeleteCrawlJob(ctx context.Context, id uuid.UUID) error
}

// TaskQueueStore implements the lease-based durable queue contract: a task
// is claimed with a time-bounded lease, renewed by Heartbeat, and released
// by Complete or Fail. Recover reclaims tasks whose lease has expired
// without a heartbeat, which is how a crashed worker's work resumes.
type TaskQueueStore interface {
	EnqueueTask(ctx context.Context, task domain.CrawlTask) (domain.CrawlTask, error)
	ClaimTask(ctx context.Context, owner string, leaseFor time.Duration) (domain.CrawlTask, bool, error)
	HeartbeatTask(ctx context.Context, id uuid.UUID, owner string, leaseFor time.Duration) error
	CompleteTask(ctx context.Context, id uuid.UUID, owner string) error
	FailTask(ctx context.Context, id uuid.UUID, owner string, errMsg string, retryAfter time.Duration) error
	// DeadLetterTask moves a leased task straight to dead_letter, bypassing
	// the retry budget. Used for permanent faults (malformed URL, policy
	// violation) that would never succeed on a subsequent attempt.
	DeadLetterTask(ctx context.Context, id uuid.UUID, owner string, errMsg string) error
	RecoverExpiredTasks(ctx context.Context, now time.Time) (int, error)
}

type PageStore interface {
	UpsertPage(ctx context.Context, page domain.Page) (domain.Page, error)
	ListPages(ctx context.Context, crawlJobID uuid.UUID) ([]domain.Page, error)
	PreviousPage(ctx context.Context, siteID uuid.UUID, url string) (domain.Page, bool, error)
}

type GeneratedFileStore interface {
	SaveGeneratedFile(ctx context.Context, file domain.GeneratedFile) (domain.GeneratedFile, error)
	LatestGeneratedFile(ctx context.Context, siteID uuid.UUID, kind string) (domain.GeneratedFile, error)
}

type ScheduleStore interface {
	UpsertSchedule(ctx context.Context, schedule domain.Schedule) (domain.Schedule, error)
	ClaimDueSchedules(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	AdvanceSchedule(ctx context.Context, id uuid.UUID, nextRunAt time.Time, lastRunAt time.Time) error
}
