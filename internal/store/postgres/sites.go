package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/store"
)

func (s *Store) CreateSite(ctx context.Context, site domain.Site) (domain.Site, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sites (id, root_url, allowed_path_prefix, max_depth, max_pages, concurrency, user_agent, robots_user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, root_url, allowed_path_prefix, max_depth, max_pages, concurrency, user_agent, robots_user_agent, created_at`,
		site.ID, site.RootURL.String(), site.AllowedPathPrefix, site.MaxDepth, site.MaxPages,
		site.Concurrency, site.UserAgent, site.RobotsUserAgent,
	)
	return scanSite(row)
}

func (s *Store) GetSite(ctx context.Context, id uuid.UUID) (domain.Site, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, root_url, allowed_path_prefix, max_depth, max_pages, concurrency, user_agent, robots_user_agent, created_at
		FROM sites WHERE id = $1`, id)
	return scanSite(row)
}

func (s *Store) CreateCrawlJob(ctx context.Context, job domain.CrawlJob) (domain.CrawlJob, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO crawl_jobs (id, site_id, status, max_pages, max_depth, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL)
		RETURNING id, site_id, status, pages_found, pages_crawled, pages_changed, pages_skipped,
		          max_pages, max_depth, started_at, finished_at, error_message, created_at, updated_at`,
		job.ID, job.SiteID, job.Status, job.MaxPages, job.MaxDepth, job.StartedAt,
	)
	return scanCrawlJob(row)
}

func (s *Store) GetCrawlJob(ctx context.Context, id uuid.UUID) (domain.CrawlJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, site_id, status, pages_found, pages_crawled, pages_changed, pages_skipped,
		       max_pages, max_depth, started_at, finished_at, error_message, created_at, updated_at
		FROM crawl_jobs WHERE id = $1`, id)
	return scanCrawlJob(row)
}

// UpdateCrawlJobCounters applies a progress snapshot only; it never touches
// status or the started_at/finished_at lifecycle fields, so it's safe to
// call from the crawler's per-page hot path without racing TransitionCrawlJob.
func (s *Store) UpdateCrawlJobCounters(ctx context.Context, id uuid.UUID, counters domain.CrawlJobCounters) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_jobs
		SET pages_found = $2, pages_crawled = $3, pages_changed = $4, pages_skipped = $5, updated_at = now()
		WHERE id = $1`,
		id, counters.PagesFound, counters.PagesCrawled, counters.PagesChanged, counters.PagesSkipped,
	)
	if err != nil {
		return fmt.Errorf("update crawl job counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TransitionCrawlJob moves status, stamping started_at on entry to running
// and finished_at/error_message on entry to a terminal state.
func (s *Store) TransitionCrawlJob(ctx context.Context, id uuid.UUID, status domain.CrawlJobStatus, errMsg string) error {
	timeClause := ""
	switch status {
	case domain.CrawlJobRunning:
		timeClause = ", started_at = now()"
	case domain.CrawlJobCompleted, domain.CrawlJobFailed:
		timeClause = ", finished_at = now()"
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE crawl_jobs SET status = $2, error_message = $3, updated_at = now()%s
		WHERE id = $1`, timeClause),
		id, status, errMsg,
	)
	if err != nil {
		return fmt.Errorf("transition crawl job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteCrawlJob removes a CrawlJob row outright. Used by cronscheduler to
// roll back the job it speculatively created when the matching Enqueue
// turns out to be a duplicate fire, so no orphaned pending job is left
// behind with no task to ever drive it.
func (s *Store) DeleteCrawlJob(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM crawl_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete crawl job: %w", err)
	}
	return nil
}

// LatestCompletedCrawlJob returns the most recently finished CrawlJob for
// siteID, excluding excludeJobID, for removed-page diffing.
func (s *Store) LatestCompletedCrawlJob(ctx context.Context, siteID uuid.UUID, excludeJobID uuid.UUID) (domain.CrawlJob, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, site_id, status, pages_found, pages_crawled, pages_changed, pages_skipped,
		       max_pages, max_depth, started_at, finished_at, error_message, created_at, updated_at
		FROM crawl_jobs
		WHERE site_id = $1 AND id != $2 AND status = $3
		ORDER BY finished_at DESC
		LIMIT 1`, siteID, excludeJobID, domain.CrawlJobCompleted)

	job, err := scanCrawlJob(row)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CrawlJob{}, false, nil
		}
		return domain.CrawlJob{}, false, err
	}
	return job, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (domain.Site, error) {
	var site domain.Site
	var rootURL string
	err := row.Scan(
		&site.ID, &rootURL, &site.AllowedPathPrefix, &site.MaxDepth, &site.MaxPages,
		&site.Concurrency, &site.UserAgent, &site.RobotsUserAgent, &site.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Site{}, store.ErrNotFound
		}
		return domain.Site{}, fmt.Errorf("scan site: %w", err)
	}
	parsed, err := parseURL(rootURL)
	if err != nil {
		return domain.Site{}, fmt.Errorf("parse site root_url: %w", err)
	}
	site.RootURL = parsed
	return site, nil
}

func scanCrawlJob(row rowScanner) (domain.CrawlJob, error) {
	var job domain.CrawlJob
	err := row.Scan(
		&job.ID, &job.SiteID, &job.Status, &job.PagesFound, &job.PagesCrawled,
		&job.PagesChanged, &job.PagesSkipped, &job.MaxPages, &job.MaxDepth,
		&job.StartedAt, &job.FinishedAt, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CrawlJob{}, store.ErrNotFound
		}
		return domain.CrawlJob{}, fmt.Errorf("scan crawl job: %w", err)
	}
	return job, nil
}
