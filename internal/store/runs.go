package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jobintel-engine/internal/domain"
)

const runCols = `id, source, keywords, location, started_at, completed_at, status,
  jobs_found, jobs_new, jobs_updated, jobs_deduped, error_message, error_detail, metadata`

func (d *DB) CreateRun(ctx context.Context, r *domain.IngestRun) (int64, error) {
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO ingest_runs (source, keywords, location, started_at, completed_at, status,
  jobs_found, jobs_new, jobs_updated, jobs_deduped, error_message, error_detail, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		r.Source, r.Keywords, r.Location, fmtTime(r.StartedAt), fmtTimePtr(r.CompletedAt), string(r.Status),
		r.JobsFound, r.JobsNew, r.JobsUpdated, r.JobsDeduped, r.ErrorMessage, r.ErrorDetail, r.Metadata,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

// UpdateRun only touches runs that are not yet terminal, so a finished run
// stays as it was written.
func (d *DB) UpdateRun(ctx context.Context, r *domain.IngestRun) error {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE ingest_runs SET
  completed_at = ?, status = ?,
  jobs_found = ?, jobs_new = ?, jobs_updated = ?, jobs_deduped = ?,
  error_message = ?, error_detail = ?, metadata = ?
WHERE id = ? AND status IN ('pending', 'running');`,
		fmtTimePtr(r.CompletedAt), string(r.Status),
		r.JobsFound, r.JobsNew, r.JobsUpdated, r.JobsDeduped,
		r.ErrorMessage, r.ErrorDetail, r.Metadata,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
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
	row := d.Pool.QueryRowContext(ctx, `SELECT `+runCols+` FROM ingest_runs WHERE id = ?;`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (d *DB) ListRecentRuns(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+runCols+` FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT ?;`, limit)
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

func scanRun(s rowScanner) (*domain.IngestRun, error) {
	var (
		r                       domain.IngestRun
		location, completed     sql.NullString
		errMsg, errDetail, meta sql.NullString
		started, status         string
	)
	if err := s.Scan(
		&r.ID, &r.Source, &r.Keywords, &location, &started, &completed, &status,
		&r.JobsFound, &r.JobsNew, &r.JobsUpdated, &r.JobsDeduped, &errMsg, &errDetail, &meta,
	); err != nil {
		return nil, err
	}

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if r.CompletedAt, err = parseTimePtr(completed); err != nil {
		return nil, err
	}
	if r.Status, err = domain.ParseRunStatus(status); err != nil {
		return nil, fmt.Errorf("run %d: %w", r.ID, err)
	}
	r.Location = nullString(location)
	r.ErrorMessage = nullString(errMsg)
	r.ErrorDetail = nullString(errDetail)
	r.Metadata = nullString(meta)
	return &r, nil
}
