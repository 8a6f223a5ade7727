package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"jobintel-engine/internal/domain"
)

const runCols = `id, source, keywords, location, started_at, completed_at, status,
  jobs_found, jobs_new, jobs_updated, jobs_deduped, error_message, error_detail, metadata::text`

func (d *DB) CreateRun(ctx context.Context, r *domain.IngestRun) (int64, error) {
	var id int64
	err := d.Pool.QueryRow(ctx, `
INSERT INTO ingest_runs (source, keywords, location, started_at, completed_at, status,
  jobs_found, jobs_new, jobs_updated, jobs_deduped, error_message, error_detail, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb)
RETURNING id`,
		r.Source, r.Keywords, r.Location, r.StartedAt.UTC(), utcPtr(r.CompletedAt), string(r.Status),
		r.JobsFound, r.JobsNew, r.JobsUpdated, r.JobsDeduped, r.ErrorMessage, r.ErrorDetail, r.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	r.ID = id
	return id, nil
}

func (d *DB) UpdateRun(ctx context.Context, r *domain.IngestRun) error {
	tag, err := d.Pool.Exec(ctx, `
UPDATE ingest_runs SET
  completed_at = $1, status = $2,
  jobs_found = $3, jobs_new = $4, jobs_updated = $5, jobs_deduped = $6,
  error_message = $7, error_detail = $8, metadata = $9::jsonb
WHERE id = $10 AND status IN ('pending', 'running')`,
		utcPtr(r.CompletedAt), string(r.Status),
		r.JobsFound, r.JobsNew, r.JobsUpdated, r.JobsDeduped,
		r.ErrorMessage, r.ErrorDetail, r.Metadata,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %d: %w", r.ID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	existing, err := d.GetRun(ctx, r.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("run %d: %w", r.ID, domain.ErrNotFound)
	}
	return fmt.Errorf("run %d: %w", r.ID, domain.ErrRunFinalized)
}

func (d *DB) GetRun(ctx context.Context, id int64) (*domain.IngestRun, error) {
	r, err := scanRun(d.Pool.QueryRow(ctx, `SELECT `+runCols+` FROM ingest_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (d *DB) ListRecentRuns(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+runCols+` FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IngestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*domain.IngestRun, error) {
	var (
		r      domain.IngestRun
		status string
	)
	if err := row.Scan(
		&r.ID, &r.Source, &r.Keywords, &r.Location, &r.StartedAt, &r.CompletedAt, &status,
		&r.JobsFound, &r.JobsNew, &r.JobsUpdated, &r.JobsDeduped, &r.ErrorMessage, &r.ErrorDetail, &r.Metadata,
	); err != nil {
		return nil, err
	}
	var err error
	if r.Status, err = domain.ParseRunStatus(status); err != nil {
		return nil, fmt.Errorf("run %d: %w", r.ID, err)
	}
	r.StartedAt = r.StartedAt.UTC()
	r.CompletedAt = utcPtr(r.CompletedAt)
	return &r, nil
}
