package catalog

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobintel-engine/internal/domain"
)

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortPayAsc, ParseSortKey("pay_asc"))
	assert.Equal(t, SortTitleDesc, ParseSortKey(" Title_Desc "))
	assert.Equal(t, SortPostedAtDesc, ParseSortKey(""))
	assert.Equal(t, SortPostedAtDesc, ParseSortKey("relevance"))
}

func TestQueryNormalized(t *testing.T) {
	q := Query{}.Normalized()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)
	assert.Equal(t, SortPostedAtDesc, q.SortBy)
	assert.Equal(t, 0, q.Offset())

	q = Query{Page: -3, PageSize: 1000, SortBy: "PAY_DESC"}.Normalized()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPageSize, q.PageSize)
	assert.Equal(t, SortPayDesc, q.SortBy)

	q = Query{Page: 3, PageSize: 10}.Normalized()
	assert.Equal(t, 20, q.Offset())
}

func TestQueryNormalizedClampsHugePage(t *testing.T) {
	for _, size := range []int{1, DefaultPageSize, MaxPageSize, 5000} {
		q := Query{Page: math.MaxInt, PageSize: size}.Normalized()
		assert.Equal(t, MaxPage, q.Page)
		assert.Positive(t, q.Offset(), "page size %d", size)
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 3, Page{TotalCount: 25, PageSize: 10}.TotalPages())
	assert.Equal(t, 2, Page{TotalCount: 20, PageSize: 10}.TotalPages())
	assert.Equal(t, 0, Page{TotalCount: 0, PageSize: 10}.TotalPages())
	assert.Equal(t, 0, Page{TotalCount: 5}.TotalPages())
}

type fakeReader struct {
	got   Query
	items []domain.Posting
	total int
	err   error

	since time.Time
}

func (f *fakeReader) SearchPostings(_ context.Context, q Query) ([]domain.Posting, int, error) {
	f.got = q
	return f.items, f.total, f.err
}

func (f *fakeReader) GetPosting(_ context.Context, id int64) (*domain.Posting, error) {
	for _, p := range f.items {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, f.err
}

func (f *fakeReader) CountPostings(context.Context) (int, error)       { return 30, f.err }
func (f *fakeReader) CountActivePostings(context.Context) (int, error) { return 25, f.err }
func (f *fakeReader) CountPostingsSince(_ context.Context, since time.Time) (int, error) {
	f.since = since
	return 4, f.err
}
func (f *fakeReader) CountByTrade(context.Context, *time.Time) (map[string]int, error) {
	return map[string]int{"plumber": 10}, f.err
}
func (f *fakeReader) CountByState(context.Context, *time.Time) (map[string]int, error) {
	return nil, f.err
}

func TestSearchNormalizesQuery(t *testing.T) {
	r := &fakeReader{total: 25}
	svc := NewService(r)

	page, err := svc.Search(context.Background(), Query{Page: 3, PageSize: 10, SortBy: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, SortPostedAtDesc, r.got.SortBy)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, 3, page.TotalPages())
	assert.NotNil(t, page.Items)
}

func TestSearchWrapsError(t *testing.T) {
	svc := NewService(&fakeReader{err: errors.New("db gone")})
	_, err := svc.Search(context.Background(), Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search postings: db gone")
}

func TestStats(t *testing.T) {
	r := &fakeReader{}
	svc := NewService(r)
	svc.now = func() time.Time { return time.Date(2025, 12, 3, 15, 4, 5, 0, time.UTC) }

	st, err := svc.Stats(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 30, st.TotalJobs)
	assert.Equal(t, 25, st.ActiveJobs)
	assert.Equal(t, 4, st.JobsAddedToday)
	assert.Equal(t, map[string]int{"plumber": 10}, st.ByTrade)
	assert.Equal(t, map[string]int{}, st.ByState)
	assert.Equal(t, time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC), r.since)
}

func TestGetMissing(t *testing.T) {
	p, err := NewService(&fakeReader{}).Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, p)
}
