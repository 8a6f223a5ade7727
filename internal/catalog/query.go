package catalog

import (
	"math"
	"strings"
	"time"

	"jobintel-engine/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (Page-1)*PageSize inside int for any allowed PageSize.
	MaxPage = math.MaxInt / MaxPageSize
)

type SortKey string

const (
	SortPostedAtAsc  SortKey = "posted_at_asc"
	SortPostedAtDesc SortKey = "posted_at_desc"
	SortPayAsc       SortKey = "pay_asc"
	SortPayDesc      SortKey = "pay_desc"
	SortTitleAsc     SortKey = "title_asc"
	SortTitleDesc    SortKey = "title_desc"
)

// ParseSortKey is case-insensitive; anything unknown sorts newest first.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortPostedAtAsc, SortPostedAtDesc, SortPayAsc, SortPayDesc, SortTitleAsc, SortTitleDesc:
		return k
	}
	return SortPostedAtDesc
}

// Criteria are ANDed. Zero values do not filter. String filters compare
// case-insensitively.
type Criteria struct {
	Trade          string
	State          string
	Suburb         string
	EmploymentType string
	PostedAfter    *time.Time
	// PayMin/PayMax select postings whose stored range overlaps
	// [PayMin, PayMax].
	PayMin *float64
	PayMax *float64
}

type Query struct {
	Criteria
	Page     int
	PageSize int
	SortBy   SortKey
}

// Normalized fills defaults and clamps paging.
func (q Query) Normalized() Query {
	switch {
	case q.Page < 1:
		q.Page = 1
	case q.Page > MaxPage:
		q.Page = MaxPage
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = DefaultPageSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	q.SortBy = ParseSortKey(string(q.SortBy))
	return q
}

// Offset is the number of rows skipped for q's page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

type Page struct {
	Items      []domain.Posting
	TotalCount int
	Page       int
	PageSize   int
}

func (p Page) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}
