package store

import (
	"fmt"
	"strings"
	"time"

	"jobintel-engine/internal/catalog"
)

// Dialect papers over the placeholder and timestamp differences between the
// SQLite and Postgres stores so both build the same search SQL.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Time converts a timestamp into a bind value.
	Time func(t time.Time) any
}

var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	Time:        func(t time.Time) any { return fmtTime(t) },
}

// SearchWhere builds the WHERE clause for c. Only active postings match.
func SearchWhere(d Dialect, c catalog.Criteria) (string, []any) {
	conds := []string{"is_active"}
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, d.Placeholder(len(args))))
	}

	if c.Trade != "" {
		add("lower(trade) = %s", strings.ToLower(c.Trade))
	}
	if c.State != "" {
		add("lower(state) = %s", strings.ToLower(c.State))
	}
	if c.Suburb != "" {
		add("lower(suburb) = %s", strings.ToLower(c.Suburb))
	}
	if c.EmploymentType != "" {
		add("lower(employment_type) = %s", strings.ToLower(c.EmploymentType))
	}
	if c.PostedAfter != nil {
		add("posted_at >= %s", d.Time(*c.PostedAfter))
	}
	// overlap: stored range reaches the requested one on both sides
	if c.PayMin != nil {
		add("pay_max >= %s", *c.PayMin)
	}
	if c.PayMax != nil {
		add("pay_min <= %s", *c.PayMax)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

// OrderBy maps a sort key to an ORDER BY clause. NULLs sort last and id
// breaks ties so paging is stable.
func OrderBy(k catalog.SortKey) string {
	switch k {
	case catalog.SortPostedAtAsc:
		return "ORDER BY posted_at ASC NULLS LAST, id ASC"
	case catalog.SortPayAsc:
		return "ORDER BY pay_min ASC NULLS LAST, id ASC"
	case catalog.SortPayDesc:
		return "ORDER BY pay_max DESC NULLS LAST, id DESC"
	case catalog.SortTitleAsc:
		return "ORDER BY lower(title) ASC, id ASC"
	case catalog.SortTitleDesc:
		return "ORDER BY lower(title) DESC, id DESC"
	default:
		return "ORDER BY posted_at DESC NULLS LAST, id DESC"
	}
}
