// Package catalog is the read side of the posting catalog: filtered, sorted,
// paginated search plus summary statistics. Only active postings are
// searchable.
package catalog

import (
	"context"
	"fmt"
	"time"

	"jobintel-engine/internal/domain"
)

// Reader is implemented by the stores. SearchPostings receives a normalized
// query and returns the requested page plus the total match count.
type Reader interface {
	SearchPostings(ctx context.Context, q Query) ([]domain.Posting, int, error)
	GetPosting(ctx context.Context, id int64) (*domain.Posting, error)

	CountPostings(ctx context.Context) (int, error)
	CountActivePostings(ctx context.Context) (int, error)
	CountPostingsSince(ctx context.Context, since time.Time) (int, error)
	CountByTrade(ctx context.Context, since *time.Time) (map[string]int, error)
	CountByState(ctx context.Context, since *time.Time) (map[string]int, error)
}

type Service struct {
	r   Reader
	now func() time.Time
}

func NewService(r Reader) *Service {
	return &Service{r: r, now: time.Now}
}

func (s *Service) Search(ctx context.Context, q Query) (Page, error) {
	q = q.Normalized()
	items, total, err := s.r.SearchPostings(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("search postings: %w", err)
	}
	if items == nil {
		items = []domain.Posting{}
	}
	return Page{Items: items, TotalCount: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Get returns the posting or (nil, nil) when there is none.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Posting, error) {
	p, err := s.r.GetPosting(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get posting %d: %w", id, err)
	}
	return p, nil
}

// Stats summarises the catalog. since, when set, narrows the trade and state
// breakdowns to postings scraped at or after it.
func (s *Service) Stats(ctx context.Context, since *time.Time) (domain.Stats, error) {
	var st domain.Stats
	var err error

	if st.TotalJobs, err = s.r.CountPostings(ctx); err != nil {
		return st, fmt.Errorf("count postings: %w", err)
	}
	if st.ActiveJobs, err = s.r.CountActivePostings(ctx); err != nil {
		return st, fmt.Errorf("count active postings: %w", err)
	}
	if st.JobsAddedToday, err = s.r.CountPostingsSince(ctx, startOfDay(s.now())); err != nil {
		return st, fmt.Errorf("count postings added today: %w", err)
	}
	if st.ByTrade, err = s.ByTrade(ctx, since); err != nil {
		return st, err
	}
	if st.ByState, err = s.ByState(ctx, since); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Service) ByTrade(ctx context.Context, since *time.Time) (map[string]int, error) {
	m, err := s.r.CountByTrade(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count by trade: %w", err)
	}
	if m == nil {
		m = map[string]int{}
	}
	return m, nil
}

func (s *Service) ByState(ctx context.Context, since *time.Time) (map[string]int, error) {
	m, err := s.r.CountByState(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	if m == nil {
		m = map[string]int{}
	}
	return m, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
