package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/store"
)

// EnqueueTask inserts a new task. A duplicate idempotency_key (the same
// normalized URL discovered twice within a job, or the same cron fire
// retried) is not an error condition for the caller: it means the work is
// already queued, so EnqueueTask reports store.ErrIdempotencyConflict and
// the caller simply continues.
func (s *Store) EnqueueTask(ctx context.Context, task domain.CrawlTask) (domain.CrawlTask, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO crawl_tasks (
			id, crawl_job_id, url, depth, priority, status, idempotency_key,
			attempts, max_attempts, available_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
		RETURNING id, crawl_job_id, url, depth, priority, status, idempotency_key,
		          attempts, max_attempts, available_at, lease_owner, lease_expires_at,
		          last_error, created_at, updated_at`,
		task.ID, task.CrawlJobID, task.URL, task.Depth, task.Priority, domain.TaskPending,
		task.IdempotencyKey, task.MaxAttempts, task.AvailableAt,
	)

	created, err := scanTask(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.CrawlTask{}, store.ErrIdempotencyConflict
		}
		return domain.CrawlTask{}, err
	}
	return created, nil
}

// ClaimTask atomically claims the next available task for owner, ordered by
// priority DESC, available_at ASC, id ASC. FOR UPDATE SKIP LOCKED lets many
// worker processes claim concurrently from the same queue without blocking
// on each other or double-claiming a row.
func (s *Store) ClaimTask(ctx context.Context, owner string, leaseFor time.Duration) (domain.CrawlTask, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CrawlTask{}, false, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT id, crawl_job_id, url, depth, priority, status, idempotency_key,
		       attempts, max_attempts, available_at, lease_owner, lease_expires_at,
		       last_error, created_at, updated_at
		FROM crawl_tasks
		WHERE status = $1 AND available_at <= now()
		ORDER BY priority DESC, available_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, domain.TaskPending,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CrawlTask{}, false, nil
		}
		return domain.CrawlTask{}, false, fmt.Errorf("claim query: %w", err)
	}

	leaseExpiresAt := time.Now().Add(leaseFor)
	tag, err := tx.Exec(ctx, `
		UPDATE crawl_tasks
		SET status = $2, lease_owner = $3, lease_expires_at = $4, attempts = attempts + 1, updated_at = now()
		WHERE id = $1`,
		task.ID, domain.TaskClaimed, owner, leaseExpiresAt,
	)
	if err != nil {
		return domain.CrawlTask{}, false, fmt.Errorf("claim update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.CrawlTask{}, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CrawlTask{}, false, fmt.Errorf("commit claim tx: %w", err)
	}

	task.Status = domain.TaskClaimed
	task.LeaseOwner = owner
	task.LeaseExpiresAt = &leaseExpiresAt
	task.Attempts++
	return task, true, nil
}

// HeartbeatTask renews the lease on a claimed task. The worker calls this
// on a fixed interval well inside leaseFor so a live worker never loses a
// task it is actively processing.
func (s *Store) HeartbeatTask(ctx context.Context, id uuid.UUID, owner string, leaseFor time.Duration) error {
	leaseExpiresAt := time.Now().Add(leaseFor)
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_tasks
		SET lease_expires_at = $3, updated_at = now()
		WHERE id = $1 AND lease_owner = $2 AND status = $4`,
		id, owner, leaseExpiresAt, domain.TaskClaimed,
	)
	if err != nil {
		return fmt.Errorf("heartbeat task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrLeaseLost
	}
	return nil
}

func (s *Store) CompleteTask(ctx context.Context, id uuid.UUID, owner string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_tasks
		SET status = $3, updated_at = now()
		WHERE id = $1 AND lease_owner = $2 AND status = $4`,
		id, owner, domain.TaskCompleted, domain.TaskClaimed,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrLeaseLost
	}
	return nil
}

// FailTask records a failure. If attempts have not yet reached max_attempts
// the task is returned to pending with available_at pushed out by
// retryAfter (the caller computes retryAfter from the exponential backoff
// formula); otherwise it is marked terminally failed.
func (s *Store) FailTask(ctx context.Context, id uuid.UUID, owner string, errMsg string, retryAfter time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_tasks
		SET
			status = CASE WHEN attempts >= max_attempts THEN $4 ELSE $5 END,
			available_at = now() + $3,
			last_error = $6,
			lease_owner = '',
			lease_expires_at = NULL,
			updated_at = now()
		WHERE id = $1 AND lease_owner = $2 AND status = $7`,
		id, owner, retryAfter, domain.TaskFailed, domain.TaskPending, errMsg, domain.TaskClaimed,
	)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrLeaseLost
	}
	return nil
}

// DeadLetterTask transitions a leased task straight to dead_letter,
// bypassing the retry budget entirely, for faults that will never succeed
// on a subsequent attempt (malformed URL, robots/policy violation).
func (s *Store) DeadLetterTask(ctx context.Context, id uuid.UUID, owner string, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_tasks
		SET status = $3, last_error = $4, lease_owner = '', lease_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND lease_owner = $2 AND status = $5`,
		id, owner, domain.TaskFailed, errMsg, domain.TaskClaimed,
	)
	if err != nil {
		return fmt.Errorf("dead-letter task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrLeaseLost
	}
	return nil
}

// RecoverExpiredTasks reclaims tasks whose lease expired without a
// heartbeat or completion — the durable-queue equivalent of a crashed
// worker's work resuming elsewhere. It returns them to pending so the next
// ClaimTask call can pick them up.
func (s *Store) RecoverExpiredTasks(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_tasks
		SET status = $2, lease_owner = '', lease_expires_at = NULL, updated_at = now()
		WHERE status = $3 AND lease_expires_at < $1`,
		now, domain.TaskPending, domain.TaskClaimed,
	)
	if err != nil {
		return 0, fmt.Errorf("recover expired tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanTask(row rowScanner) (domain.CrawlTask, error) {
	var task domain.CrawlTask
	err := row.Scan(
		&task.ID, &task.CrawlJobID, &task.URL, &task.Depth, &task.Priority, &task.Status,
		&task.IdempotencyKey, &task.Attempts, &task.MaxAttempts, &task.AvailableAt,
		&task.LeaseOwner, &task.LeaseExpiresAt, &task.LastError, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CrawlTask{}, store.ErrNotFound
		}
		return domain.CrawlTask{}, fmt.Errorf("scan task: %w", err)
	}
	return task, nil
}
