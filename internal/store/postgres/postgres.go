// Package postgres is the PostgreSQL implementation of the catalog and run
// log. It mirrors the SQLite store in internal/store and shares its search
// SQL through store.Dialect.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

// Open creates and verifies a pgxpool connection pool.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (d *DB) Close() error {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
	return nil
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS postings (
  id BIGSERIAL PRIMARY KEY,
  source TEXT NOT NULL,
  source_id TEXT NOT NULL,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  requirements TEXT,
  state TEXT,
  suburb TEXT,
  trade TEXT,
  employment_type TEXT,
  pay_min DOUBLE PRECISION,
  pay_max DOUBLE PRECISION,
  tags JSONB,
  job_url TEXT,
  posted_at TIMESTAMPTZ,
  scraped_at TIMESTAMPTZ NOT NULL,
  last_checked_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  fingerprint TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_postings_identity ON postings(source, source_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_postings_fingerprint ON postings(fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_active_posted ON postings(is_active, posted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_trade ON postings(trade)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_state ON postings(state)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_last_checked ON postings(last_checked_at)`,
	`
CREATE TABLE IF NOT EXISTS ingest_runs (
  id BIGSERIAL PRIMARY KEY,
  source TEXT NOT NULL,
  keywords TEXT NOT NULL DEFAULT '',
  location TEXT,
  started_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ,
  status TEXT NOT NULL,
  jobs_found INTEGER NOT NULL DEFAULT 0,
  jobs_new INTEGER NOT NULL DEFAULT 0,
  jobs_updated INTEGER NOT NULL DEFAULT 0,
  jobs_deduped INTEGER NOT NULL DEFAULT 0,
  error_message TEXT,
  error_detail TEXT,
  metadata JSONB
)`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at)`,
}

// Migrate applies the schema. Every statement is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	return pgx.BeginFunc(ctx, d.Pool, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
