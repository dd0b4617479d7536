// Package queue implements the durable, lease-based task queue contract on
// top of store.Store: enqueue, claim, heartbeat, complete, fail, recover.
// It owns no state of its own — store.Store is the single source of
// truth — so multiple worker processes sharing one database operate on a
// consistent view of the queue without any in-process coordination.
package queue

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/store"
)

const (
	// DefaultLeaseFor is how long a claimed task is reserved before it is
	// considered abandoned absent a heartbeat.
	DefaultLeaseFor = 60 * time.Second

	// DefaultMaxAttempts bounds how many times a task is retried before it
	// is marked terminally failed.
	DefaultMaxAttempts = 5

	backoffBase = 15 * time.Second
)

// Queue is the task-queue port the crawler, worker, and scheduler depend on.
type Queue struct {
	store store.TaskQueueStore
	rng   *rand.Rand
}

func New(s store.TaskQueueStore) *Queue {
	return &Queue{
		store: s,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewWithRNG allows injecting a seeded RNG so backoff jitter is
// deterministic in tests.
func NewWithRNG(s store.TaskQueueStore, rng *rand.Rand) *Queue {
	return &Queue{store: s, rng: rng}
}

// EnqueueParam describes a unit of crawl work to admit to the queue.
type EnqueueParam struct {
	CrawlJobID     uuid.UUID
	URL            string
	Depth          int
	Priority       int
	IdempotencyKey string
	MaxAttempts    int
	AvailableAt    time.Time
}

// Enqueue admits a task. A duplicate idempotency key (the same URL
// discovered twice in one job, or the same cron fire retried) is not
// surfaced as an error — the caller treats it as "already queued".
func (q *Queue) Enqueue(ctx context.Context, p EnqueueParam) (domain.CrawlTask, bool, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	availableAt := p.AvailableAt
	if availableAt.IsZero() {
		availableAt = time.Now()
	}

	task := domain.CrawlTask{
		ID:             uuid.New(),
		CrawlJobID:     p.CrawlJobID,
		URL:            p.URL,
		Depth:          p.Depth,
		Priority:       p.Priority,
		IdempotencyKey: p.IdempotencyKey,
		MaxAttempts:    maxAttempts,
		AvailableAt:    availableAt,
	}

	created, err := q.store.EnqueueTask(ctx, task)
	if err != nil {
		if err == store.ErrIdempotencyConflict {
			return domain.CrawlTask{}, false, nil
		}
		return domain.CrawlTask{}, false, fmt.Errorf("enqueue task: %w", err)
	}
	return created, true, nil
}

// Claim reserves the next available task for owner, leasing it for
// DefaultLeaseFor.
func (q *Queue) Claim(ctx context.Context, owner string) (domain.CrawlTask, bool, error) {
	return q.store.ClaimTask(ctx, owner, DefaultLeaseFor)
}

// Heartbeat renews owner's lease on task id.
func (q *Queue) Heartbeat(ctx context.Context, id uuid.UUID, owner string) error {
	return q.store.HeartbeatTask(ctx, id, owner, DefaultLeaseFor)
}

func (q *Queue) Complete(ctx context.Context, id uuid.UUID, owner string) error {
	return q.store.CompleteTask(ctx, id, owner)
}

// Fail records a failed attempt and schedules a retry using exponential
// backoff with jitter: base * 2^(attempts-1) * (1 + jitter), jitter in
// [0, 0.2). The store decides, from attempts vs max_attempts, whether the
// task returns to pending or becomes terminally failed.
func (q *Queue) Fail(ctx context.Context, task domain.CrawlTask, owner string, cause error) error {
	delay := Backoff(q.rng, task.Attempts, backoffBase)
	return q.store.FailTask(ctx, task.ID, owner, cause.Error(), delay)
}

// DeadLetter sends a task straight to dead_letter, bypassing the retry
// budget, for permanent faults (malformed URL, robots/policy violation)
// that a retry would never resolve.
func (q *Queue) DeadLetter(ctx context.Context, id uuid.UUID, owner string, cause error) error {
	return q.store.DeadLetterTask(ctx, id, owner, cause.Error())
}

// Recover returns abandoned (lease-expired) tasks to pending so another
// worker can claim them. Callers run this on an interval from a single
// worker loop, or any worker with no claimed work of its own.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	return q.store.RecoverExpiredTasks(ctx, time.Now())
}

// Backoff computes base * 2^(attempts-1) * (1 + jitter) with jitter drawn
// uniformly from [0, 0.2), matching the spec's backoff(n) policy.
// attempts <= 0 is treated as 1.
func Backoff(rng *rand.Rand, attempts int, base time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	exponent := float64(attempts - 1)
	jitter := rng.Float64() * 0.2
	delay := float64(base) * math.Pow(2, exponent) * (1 + jitter)
	return time.Duration(delay)
}
