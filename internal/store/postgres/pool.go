// Package postgres is the production store.Store adapter, backed by
// jackc/pgx/v5 and pressly/goose/v3 migrations.
package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is the postgres-backed store.Store implementation. All query
// methods live in the sibling files in this package (sites.go, tasks.go,
// pages.go, files.go, schedules.go); this file only owns connection setup
// and migration bookkeeping.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates a pgxpool connected to dsn. Callers must call Close when done.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies every pending embedded migration in migrations/.
func Migrate(dsn string) error {
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	return goose.Up(db, "migrations")
}
