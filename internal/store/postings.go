package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobintel-engine/internal/domain"
)

const postingCols = `id, source, source_id, title, company, description, requirements,
  state, suburb, trade, employment_type, pay_min, pay_max, tags, job_url,
  posted_at, scraped_at, last_checked_at, created_at, updated_at,
  fingerprint, content_hash, is_active`

func (d *DB) GetByIdentity(ctx context.Context, source, sourceID string) (*domain.Posting, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+postingCols+` FROM postings WHERE source = ? AND source_id = ? LIMIT 1;`,
		source, sourceID)
	return scanPostingRow(row)
}

func (d *DB) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Posting, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+postingCols+` FROM postings WHERE fingerprint = ? LIMIT 1;`,
		fingerprint)
	return scanPostingRow(row)
}

func (d *DB) GetPosting(ctx context.Context, id int64) (*domain.Posting, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+postingCols+` FROM postings WHERE id = ?;`, id)
	return scanPostingRow(row)
}

// Insert relies on the unique indexes on (source, source_id) and fingerprint;
// a violation comes back as domain.ErrDuplicate.
func (d *DB) Insert(ctx context.Context, p *domain.Posting) (int64, error) {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return 0, err
	}
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO postings (source, source_id, title, company, description, requirements,
  state, suburb, trade, employment_type, pay_min, pay_max, tags, job_url,
  posted_at, scraped_at, last_checked_at, created_at, updated_at,
  fingerprint, content_hash, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		p.Source, p.SourceID, p.Title, p.Company, p.Description, p.Requirements,
		p.State, p.Suburb, p.Trade, p.EmploymentType, p.PayMin, p.PayMax, tags, p.JobURL,
		fmtTimePtr(p.PostedAt), fmtTime(p.ScrapedAt), fmtTime(p.LastCheckedAt), fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt),
		p.Fingerprint, p.ContentHash, p.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert posting %s/%s: %w", p.Source, p.SourceID, domain.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert posting: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert posting: %w", err)
	}
	p.ID = id
	return id, nil
}

// Update rewrites every mutable column of the posting with p.ID. Identity
// columns (source, source_id, fingerprint) and created_at are left alone.
func (d *DB) Update(ctx context.Context, p *domain.Posting) error {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	res, err := d.Pool.ExecContext(ctx, `
UPDATE postings SET
  title = ?, company = ?, description = ?, requirements = ?,
  state = ?, suburb = ?, trade = ?, employment_type = ?,
  pay_min = ?, pay_max = ?, tags = ?, job_url = ?, posted_at = ?,
  last_checked_at = ?, updated_at = ?, content_hash = ?, is_active = ?
WHERE id = ?;`,
		p.Title, p.Company, p.Description, p.Requirements,
		p.State, p.Suburb, p.Trade, p.EmploymentType,
		p.PayMin, p.PayMax, tags, p.JobURL, fmtTimePtr(p.PostedAt),
		fmtTime(p.LastCheckedAt), fmtTime(p.UpdatedAt), p.ContentHash, p.IsActive,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update posting %d: %w", p.ID, err)
	}
	return expectOne(res, "posting", p.ID)
}

func (d *DB) Touch(ctx context.Context, id int64, checkedAt time.Time) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE postings SET last_checked_at = ? WHERE id = ?;`,
		fmtTime(checkedAt), id)
	if err != nil {
		return fmt.Errorf("touch posting %d: %w", id, err)
	}
	return expectOne(res, "posting", id)
}

// DeactivateStale marks active postings not seen since before as inactive.
func (d *DB) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE postings
SET is_active = 0
WHERE is_active AND last_checked_at < ?;`, fmtTime(before))
	if err != nil {
		return 0, fmt.Errorf("deactivate stale postings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostingRow(row *sql.Row) (*domain.Posting, error) {
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanPosting(s rowScanner) (*domain.Posting, error) {
	var (
		p                                  domain.Posting
		req, state, suburb, trade, empType sql.NullString
		tags, jobURL, postedAt             sql.NullString
		payMin, payMax                     sql.NullFloat64
		scraped, checked, created, updated string
	)
	if err := s.Scan(
		&p.ID, &p.Source, &p.SourceID, &p.Title, &p.Company, &p.Description, &req,
		&state, &suburb, &trade, &empType, &payMin, &payMax, &tags, &jobURL,
		&postedAt, &scraped, &checked, &created, &updated,
		&p.Fingerprint, &p.ContentHash, &p.IsActive,
	); err != nil {
		return nil, err
	}

	p.Requirements = nullString(req)
	p.State = nullString(state)
	p.Suburb = nullString(suburb)
	p.Trade = nullString(trade)
	p.EmploymentType = nullString(empType)
	p.JobURL = nullString(jobURL)
	p.PayMin = nullFloat(payMin)
	p.PayMax = nullFloat(payMax)

	var err error
	if p.Tags, err = decodeTags(tags); err != nil {
		return nil, fmt.Errorf("posting %d: %w", p.ID, err)
	}
	if p.PostedAt, err = parseTimePtr(postedAt); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&p.ScrapedAt, scraped},
		{&p.LastCheckedAt, checked},
		{&p.CreatedAt, created},
		{&p.UpdatedAt, updated},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// encodeTags stores nil/empty as NULL and everything else as a JSON array.
func encodeTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(ns.String), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func expectOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return nil
}
