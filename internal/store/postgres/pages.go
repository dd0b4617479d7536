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

func (s *Store) UpsertPage(ctx context.Context, page domain.Page) (domain.Page, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO pages (
			id, crawl_job_id, site_id, url, canonical_url, title, description, headings, content,
			category, relevance_score, content_hash, change_kind, http_status, sitemap_presence,
			depth, first_seen_at, last_seen_at, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, crawl_job_id, site_id, url, canonical_url, title, description, headings, content,
		          category, relevance_score, content_hash, change_kind, http_status, sitemap_presence,
		          depth, first_seen_at, last_seen_at, fetched_at`,
		page.ID, page.CrawlJobID, page.SiteID, page.URL, page.CanonicalURL, page.Title, page.Description,
		page.Headings, page.Content, page.Category, page.RelevanceScore, page.ContentHash, page.Change,
		page.HTTPStatus, page.SitemapPresence, page.Depth, page.FirstSeenAt, page.LastSeenAt, page.FetchedAt,
	)
	return scanPage(row)
}

func (s *Store) ListPages(ctx context.Context, crawlJobID uuid.UUID) ([]domain.Page, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, crawl_job_id, site_id, url, canonical_url, title, description, headings, content,
		       category, relevance_score, content_hash, change_kind, http_status, sitemap_presence,
		       depth, first_seen_at, last_seen_at, fetched_at
		FROM pages WHERE crawl_job_id = $1 ORDER BY id`, crawlJobID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// PreviousPage returns the most recent Page persisted for url under siteID
// from a prior crawl job, used by the change tracker to classify the
// current fetch as added/updated/unchanged.
func (s *Store) PreviousPage(ctx context.Context, siteID uuid.UUID, url string) (domain.Page, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, crawl_job_id, site_id, url, canonical_url, title, description, headings, content,
		       category, relevance_score, content_hash, change_kind, http_status, sitemap_presence,
		       depth, first_seen_at, last_seen_at, fetched_at
		FROM pages
		WHERE site_id = $1 AND url = $2
		ORDER BY fetched_at DESC
		LIMIT 1`, siteID, url)

	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Page{}, false, nil
		}
		return domain.Page{}, false, err
	}
	return page, true, nil
}

func scanPage(row rowScanner) (domain.Page, error) {
	var page domain.Page
	err := row.Scan(
		&page.ID, &page.CrawlJobID, &page.SiteID, &page.URL, &page.CanonicalURL, &page.Title,
		&page.Description, &page.Headings, &page.Content, &page.Category, &page.RelevanceScore,
		&page.ContentHash, &page.Change, &page.HTTPStatus, &page.SitemapPresence,
		&page.Depth, &page.FirstSeenAt, &page.LastSeenAt, &page.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Page{}, store.ErrNotFound
		}
		return domain.Page{}, fmt.Errorf("scan page: %w", err)
	}
	return page, nil
}
