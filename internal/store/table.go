package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] moves the schema from user_version i to i+1.
var migrations = []func(ctx context.Context, tx *sql.Tx) error{
	migratePostings,
	migrateRuns,
	migrateRequirements,
}

func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= len(migrations) {
		return tx.Commit()
	}

	for i := v; i < len(migrations); i++ {
		if err := migrations[i](ctx, tx); err != nil {
			return fmt.Errorf("migrate to v%d: %w", i+1, err)
		}
	}

	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, len(migrations))); err != nil {
		return err
	}
	return tx.Commit()
}

// ---- v1: postings ----

func migratePostings(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS postings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  source_id TEXT NOT NULL,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  state TEXT,
  suburb TEXT,
  trade TEXT,
  employment_type TEXT,
  pay_min REAL,
  pay_max REAL,
  tags TEXT,
  job_url TEXT,
  posted_at TEXT,
  scraped_at TEXT NOT NULL,
  last_checked_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  fingerprint TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_postings_identity ON postings(source, source_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_postings_fingerprint ON postings(fingerprint);`,
		`CREATE INDEX IF NOT EXISTS idx_postings_active_posted ON postings(is_active, posted_at);`,
		`CREATE INDEX IF NOT EXISTS idx_postings_trade ON postings(trade);`,
		`CREATE INDEX IF NOT EXISTS idx_postings_state ON postings(state);`,
		`CREATE INDEX IF NOT EXISTS idx_postings_last_checked ON postings(last_checked_at);`,
	}
	return execAll(ctx, tx, stmts)
}

// ---- v2: ingest runs ----

func migrateRuns(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS ingest_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  keywords TEXT NOT NULL DEFAULT '',
  location TEXT,
  started_at TEXT NOT NULL,
  completed_at TEXT,
  status TEXT NOT NULL,
  jobs_found INTEGER NOT NULL DEFAULT 0,
  jobs_new INTEGER NOT NULL DEFAULT 0,
  jobs_updated INTEGER NOT NULL DEFAULT 0,
  jobs_deduped INTEGER NOT NULL DEFAULT 0,
  error_message TEXT,
  error_detail TEXT,
  metadata TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);`,
	}
	return execAll(ctx, tx, stmts)
}

// ---- v3: requirements text feeds the content hash ----

func migrateRequirements(ctx context.Context, tx *sql.Tx) error {
	if columnExists(ctx, tx, "postings", "requirements") {
		return nil
	}
	_, err := tx.ExecContext(ctx, `ALTER TABLE postings ADD COLUMN requirements TEXT;`)
	return err
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func columnExists(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRowContext(ctx, query, col).Scan(&one)
	return err == nil
}
