// Package cronscheduler fires recurring crawls on their configured cron
// schedule: once per tick it claims every Schedule whose next_run_at has
// elapsed, creates a CrawlJob for that Schedule's Site, enqueues one
// CrawlTask for it with an idempotency key bucketed by the fire instant,
// and advances the Schedule to its next occurrence.
//
// It intentionally depends on robfig/cron/v3 for parsing and Schedule.Next
// only — not its Cron run loop — so next_run_at lives in the database and
// a process restart never perturbs the firing schedule.
package cronscheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/metadata"
	"github.com/llmstxt-forge/forge/internal/queue"
)

// DefaultTick is how often Run polls for due schedules.
const DefaultTick = 30 * time.Second

// DefaultClaimBatch bounds how many due schedules one tick fires, so a
// backlog after downtime doesn't enqueue thousands of jobs in one pass.
const DefaultClaimBatch = 50

// Store is the persistence surface Scheduler needs: site lookup, job
// creation, and schedule claim/advance.
type Store interface {
	GetSite(ctx context.Context, id uuid.UUID) (domain.Site, error)
	CreateCrawlJob(ctx context.Context, job domain.CrawlJob) (domain.CrawlJob, error)
	// DeleteCrawlJob rolls back a job created speculatively ahead of an
	// Enqueue call that turns out to be an idempotency-key duplicate.
	DeleteCrawlJob(ctx context.Context, id uuid.UUID) error
	ClaimDueSchedules(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	AdvanceSchedule(ctx context.Context, id uuid.UUID, nextRunAt time.Time, lastRunAt time.Time) error
}

// Scheduler runs the cron-driven recurring enqueue loop.
type Scheduler struct {
	store      Store
	queue      *queue.Queue
	sink       metadata.MetadataSink
	parser     cron.Parser
	tick       time.Duration
	claimBatch int
}

// New builds a Scheduler with DefaultTick/DefaultClaimBatch. Use the
// With* options to override either in tests or a tuned deployment.
func New(s Store, q *queue.Queue, sink metadata.MetadataSink) *Scheduler {
	return &Scheduler{
		store:      s,
		queue:      q,
		sink:       sink,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		tick:       DefaultTick,
		claimBatch: DefaultClaimBatch,
	}
}

func (s *Scheduler) WithTick(d time.Duration) *Scheduler {
	s.tick = d
	return s
}

func (s *Scheduler) WithClaimBatch(n int) *Scheduler {
	s.claimBatch = n
	return s
}

// Run blocks, firing due schedules every tick, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every currently-due schedule once. It is exported so tests and
// a manual "run scheduler now" admin action don't need to wait out a timer.
func (s *Scheduler) Tick(ctx context.Context) {
	due, err := s.store.ClaimDueSchedules(ctx, time.Now(), s.claimBatch)
	if err != nil {
		s.sink.RecordError(time.Now(), "cronscheduler", "Tick", metadata.CauseStorageFailure, err.Error(), nil)
		return
	}

	for _, sched := range due {
		if err := s.fire(ctx, sched); err != nil {
			s.sink.RecordError(time.Now(), "cronscheduler", "fire", metadata.CauseUnknown, err.Error(),
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrMessage, sched.ID.String())})
		}
	}
}

// fire parses sched's cron expression, creates a CrawlJob for its Site,
// enqueues one CrawlTask at the site's root, and advances the schedule to
// its next occurrence. It parses before doing anything durable so a
// malformed expression never leaves behind an orphaned job.
func (s *Scheduler) fire(ctx context.Context, sched domain.Schedule) error {
	parsed, err := s.parser.Parse(sched.CronExpr)
	if err != nil {
		return &ScheduleError{Message: err.Error(), Retryable: false, Cause: ErrCauseInvalidExpression}
	}

	site, err := s.store.GetSite(ctx, sched.SiteID)
	if err != nil {
		return &ScheduleError{Message: err.Error(), Retryable: true, Cause: ErrCauseSiteLookupFailed}
	}

	job, err := s.store.CreateCrawlJob(ctx, domain.CrawlJob{
		ID:       uuid.New(),
		SiteID:   site.ID,
		Status:   domain.CrawlJobPending,
		MaxPages: site.MaxPages,
		MaxDepth: site.MaxDepth,
	})
	if err != nil {
		return &ScheduleError{Message: err.Error(), Retryable: true, Cause: ErrCauseEnqueueFailed}
	}

	idempotencyKey := fmt.Sprintf("cron-%s-%s", site.ID, sched.NextRunAt.UTC().Format(time.RFC3339))
	_, created, err := s.queue.Enqueue(ctx, queue.EnqueueParam{
		CrawlJobID:     job.ID,
		URL:            site.RootURL.String(),
		Depth:          0,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return &ScheduleError{Message: err.Error(), Retryable: true, Cause: ErrCauseEnqueueFailed}
	}
	if !created {
		// Another replica already fired this schedule at this instant: the
		// job just created above has no task and never will get one, so
		// remove it instead of leaving an orphaned pending job behind.
		if err := s.store.DeleteCrawlJob(ctx, job.ID); err != nil {
			return &ScheduleError{Message: err.Error(), Retryable: true, Cause: ErrCauseEnqueueFailed}
		}
	}

	loc := time.UTC
	if sched.Timezone != "" {
		if l, err := time.LoadLocation(sched.Timezone); err == nil {
			loc = l
		}
	}
	nextRunAt := parsed.Next(time.Now().In(loc))
	if err := s.store.AdvanceSchedule(ctx, sched.ID, nextRunAt, sched.NextRunAt); err != nil {
		return &ScheduleError{Message: err.Error(), Retryable: true, Cause: ErrCauseAdvanceFailed}
	}
	return nil
}
