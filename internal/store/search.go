package store

import (
	"context"
	"fmt"
	"time"

	"jobintel-engine/internal/catalog"
	"jobintel-engine/internal/domain"
)

func (d *DB) SearchPostings(ctx context.Context, q catalog.Query) ([]domain.Posting, int, error) {
	where, args := SearchWhere(SQLite, q.Criteria)

	var total int
	if err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM postings `+where+`;`, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := fmt.Sprintf(`
SELECT %s
FROM postings
%s
%s
LIMIT ? OFFSET ?;
`, postingCols, where, OrderBy(q.SortBy))

	rows, err := d.Pool.QueryContext(ctx, query, append(args, q.PageSize, q.Offset())...)
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
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (d *DB) CountPostings(ctx context.Context) (int, error) {
	return d.count(ctx, `SELECT COUNT(*) FROM postings;`)
}

func (d *DB) CountActivePostings(ctx context.Context) (int, error) {
	return d.count(ctx, `SELECT COUNT(*) FROM postings WHERE is_active;`)
}

func (d *DB) CountPostingsSince(ctx context.Context, since time.Time) (int, error) {
	return d.count(ctx, `SELECT COUNT(*) FROM postings WHERE scraped_at >= ?;`, fmtTime(since))
}

func (d *DB) CountByTrade(ctx context.Context, since *time.Time) (map[string]int, error) {
	return d.groupCount(ctx, "trade", since)
}

func (d *DB) CountByState(ctx context.Context, since *time.Time) (map[string]int, error) {
	return d.groupCount(ctx, "state", since)
}

func (d *DB) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := d.Pool.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// groupCount counts active postings per non-null value of col. col is one of
// our own column names, never user input.
func (d *DB) groupCount(ctx context.Context, col string, since *time.Time) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM postings WHERE is_active AND %[1]s IS NOT NULL`, col)
	var args []any
	if since != nil {
		query += ` AND scraped_at >= ?`
		args = append(args, fmtTime(*since))
	}
	query += fmt.Sprintf(` GROUP BY %s;`, col)

	rows, err := d.Pool.QueryContext(ctx, query, args...)
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
