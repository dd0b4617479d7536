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

func (s *Store) SaveGeneratedFile(ctx context.Context, file domain.GeneratedFile) (domain.GeneratedFile, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO generated_files (id, crawl_job_id, site_id, kind, content, content_sha)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, crawl_job_id, site_id, kind, content, content_sha, created_at`,
		file.ID, file.CrawlJobID, file.SiteID, file.Kind, file.Content, file.ContentSHA,
	)
	return scanGeneratedFile(row)
}

func (s *Store) LatestGeneratedFile(ctx context.Context, siteID uuid.UUID, kind string) (domain.GeneratedFile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, crawl_job_id, site_id, kind, content, content_sha, created_at
		FROM generated_files
		WHERE site_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1`, siteID, kind)
	return scanGeneratedFile(row)
}

func scanGeneratedFile(row rowScanner) (domain.GeneratedFile, error) {
	var file domain.GeneratedFile
	err := row.Scan(
		&file.ID, &file.CrawlJobID, &file.SiteID, &file.Kind, &file.Content, &file.ContentSHA, &file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GeneratedFile{}, store.ErrNotFound
		}
		return domain.GeneratedFile{}, fmt.Errorf("scan generated file: %w", err)
	}
	return file, nil
}
