package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"jobintel-engine/internal/catalog"
	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/store"
)

const postingCols = `id, source, source_id, title, company, description, requirements,
  state, suburb, trade, employment_type, pay_min, pay_max, tags::text, job_url,
  posted_at, scraped_at, last_checked_at, created_at, updated_at,
  fingerprint, content_hash, is_active`

var dialect = store.Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Time:        func(t time.Time) any { return t.UTC() },
}

func (d *DB) GetByIdentity(ctx context.Context, source, sourceID string) (*domain.Posting, error) {
	return d.getOne(ctx, `SELECT `+postingCols+` FROM postings WHERE source = $1 AND source_id = $2`, source, sourceID)
}

func (d *DB) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Posting, error) {
	return d.getOne(ctx, `SELECT `+postingCols+` FROM postings WHERE fingerprint = $1`, fingerprint)
}

func (d *DB) GetPosting(ctx context.Context, id int64) (*domain.Posting, error) {
	return d.getOne(ctx, `SELECT `+postingCols+` FROM postings WHERE id = $1`, id)
}

func (d *DB) getOne(ctx context.Context, query string, args ...any) (*domain.Posting, error) {
	p, err := scanPosting(d.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (d *DB) Insert(ctx context.Context, p *domain.Posting) (int64, error) {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return 0, err
	}
	var id int64
	err = d.Pool.QueryRow(ctx, `
INSERT INTO postings (source, source_id, title, company, description, requirements,
  state, suburb, trade, employment_type, pay_min, pay_max, tags, job_url,
  posted_at, scraped_at, last_checked_at, created_at, updated_at,
  fingerprint, content_hash, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14,
  $15, $16, $17, $18, $19, $20, $21, $22)
RETURNING id`,
		p.Source, p.SourceID, p.Title, p.Company, p.Description, p.Requirements,
		p.State, p.Suburb, p.Trade, p.EmploymentType, p.PayMin, p.PayMax, tags, p.JobURL,
		utcPtr(p.PostedAt), p.ScrapedAt.UTC(), p.LastCheckedAt.UTC(), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
		p.Fingerprint, p.ContentHash, p.IsActive,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert posting %s/%s: %w", p.Source, p.SourceID, domain.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert posting: %w", err)
	}
	p.ID = id
	return id, nil
}

func (d *DB) Update(ctx context.Context, p *domain.Posting) error {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	tag, err := d.Pool.Exec(ctx, `
UPDATE postings SET
  title = $1, company = $2, description = $3, requirements = $4,
  state = $5, suburb = $6, trade = $7, employment_type = $8,
  pay_min = $9, pay_max = $10, tags = $11::jsonb, job_url = $12, posted_at = $13,
  last_checked_at = $14, updated_at = $15, content_hash = $16, is_active = $17
WHERE id = $18`,
		p.Title, p.Company, p.Description, p.Requirements,
		p.State, p.Suburb, p.Trade, p.EmploymentType,
		p.PayMin, p.PayMax, tags, p.JobURL, utcPtr(p.PostedAt),
		p.LastCheckedAt.UTC(), p.UpdatedAt.UTC(), p.ContentHash, p.IsActive,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update posting %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("posting %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (d *DB) Touch(ctx context.Context, id int64, checkedAt time.Time) error {
	tag, err := d.Pool.Exec(ctx, `UPDATE postings SET last_checked_at = $1 WHERE id = $2`, checkedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch posting %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("posting %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (d *DB) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := d.Pool.Exec(ctx,
		`UPDATE postings SET is_active = FALSE WHERE is_active AND last_checked_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate stale postings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (d *DB) SearchPostings(ctx context.Context, q catalog.Query) ([]domain.Posting, int, error) {
	where, args := store.SearchWhere(dialect, q.Criteria)

	var total int
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM postings `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM postings %s %s LIMIT $%d OFFSET $%d`,
		postingCols, where, store.OrderBy(q.SortBy), n+1, n+2)
	rows, err := d.Pool.Query(ctx, query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (d *DB) CountPostings(ctx context.Context) (int, error) {
	return d.count(ctx, `SELECT COUNT(*) FROM postings`)
}

func (d *DB) CountActivePostings(ctx context.Context) (int, error) {
	return d.count(ctx, `SELECT COUNT(*) FROM postings WHERE is_active`)
}

func (d *DB) CountPostingsSince(ctx context.Context, since time.Time) (int, error) {
	return d.count(ctx, `SELECT COUNT(*) FROM postings WHERE scraped_at >= $1`, since.UTC())
}

func (d *DB) CountByTrade(ctx context.Context, since *time.Time) (map[string]int, error) {
	return d.groupCount(ctx, "trade", since)
}

func (d *DB) CountByState(ctx context.Context, since *time.Time) (map[string]int, error) {
	return d.groupCount(ctx, "state", since)
}

func (d *DB) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := d.Pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *DB) groupCount(ctx context.Context, col string, since *time.Time) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM postings WHERE is_active AND %[1]s IS NOT NULL`, col)
	var args []any
	if since != nil {
		query += ` AND scraped_at >= $1`
		args = append(args, since.UTC())
	}
	query += fmt.Sprintf(` GROUP BY %s`, col)

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

func scanPosting(row pgx.Row) (*domain.Posting, error) {
	var (
		p        domain.Posting
		tags     *string
		postedAt *time.Time
	)
	if err := row.Scan(
		&p.ID, &p.Source, &p.SourceID, &p.Title, &p.Company, &p.Description, &p.Requirements,
		&p.State, &p.Suburb, &p.Trade, &p.EmploymentType, &p.PayMin, &p.PayMax, &tags, &p.JobURL,
		&postedAt, &p.ScrapedAt, &p.LastCheckedAt, &p.CreatedAt, &p.UpdatedAt,
		&p.Fingerprint, &p.ContentHash, &p.IsActive,
	); err != nil {
		return nil, err
	}
	p.PostedAt = utcPtr(postedAt)
	p.ScrapedAt = p.ScrapedAt.UTC()
	p.LastCheckedAt = p.LastCheckedAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	if tags != nil && *tags != "" {
		if err := json.Unmarshal([]byte(*tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("posting %d: decode tags: %w", p.ID, err)
		}
		if len(p.Tags) == 0 {
			p.Tags = nil
		}
	}
	return &p, nil
}

func encodeTags(tags []string) (*string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	s := string(b)
	return &s, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
