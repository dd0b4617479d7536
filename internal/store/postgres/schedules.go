package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/store"
)

func (s *Store) UpsertSchedule(ctx context.Context, schedule domain.Schedule) (domain.Schedule, error) {
	timezone := schedule.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO schedules (id, site_id, cron_expr, timezone, enabled, next_run_at, last_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			cron_expr = excluded.cron_expr,
			timezone = excluded.timezone,
			enabled = excluded.enabled,
			next_run_at = excluded.next_run_at
		RETURNING id, site_id, cron_expr, timezone, enabled, next_run_at, last_run_at, created_at`,
		schedule.ID, schedule.SiteID, schedule.CronExpr, timezone, schedule.Enabled, schedule.NextRunAt, schedule.LastRunAt,
	)
	return scanSchedule(row)
}

// ClaimDueSchedules selects every enabled schedule whose next_run_at has
// elapsed. FOR UPDATE SKIP LOCKED lets multiple cronscheduler instances
// poll the same table without double-firing the same schedule.
func (s *Store) ClaimDueSchedules(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim schedules tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, site_id, cron_expr, timezone, enabled, next_run_at, last_run_at, created_at
		FROM schedules
		WHERE enabled AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim schedules: %w", err)
	}

	var schedules []domain.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim schedules tx: %w", err)
	}
	return schedules, nil
}

func (s *Store) AdvanceSchedule(ctx context.Context, id uuid.UUID, nextRunAt time.Time, lastRunAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE schedules SET next_run_at = $2, last_run_at = $3 WHERE id = $1`,
		id, nextRunAt, lastRunAt,
	)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanSchedule(row rowScanner) (domain.Schedule, error) {
	var schedule domain.Schedule
	err := row.Scan(
		&schedule.ID, &schedule.SiteID, &schedule.CronExpr, &schedule.Timezone, &schedule.Enabled,
		&schedule.NextRunAt, &schedule.LastRunAt, &schedule.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Schedule{}, store.ErrNotFound
		}
		return domain.Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}
	return schedule, nil
}
