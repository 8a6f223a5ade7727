package httpapi

import (
	"net/http"
	"strings"

	"jobintel-engine/internal/catalog"
)

type JobsHandler struct {
	Catalog *catalog.Service
}

// parseQuery reads the search parameters; the returned string names the
// offending parameter on error.
func parseQuery(r *http.Request) (catalog.Query, string, error) {
	q := r.URL.Query()
	out := catalog.Query{
		Criteria: catalog.Criteria{
			Trade:          strings.TrimSpace(q.Get("trade")),
			State:          strings.TrimSpace(q.Get("state")),
			Suburb:         strings.TrimSpace(q.Get("suburb")),
			EmploymentType: strings.TrimSpace(q.Get("employmentType")),
		},
		SortBy: catalog.SortKey(q.Get("sortBy")),
	}

	var err error
	if out.PostedAfter, err = queryTime(r, "postedAfter"); err != nil {
		return out, "postedAfter", err
	}
	if out.PayMin, err = queryFloat(r, "payMin"); err != nil {
		return out, "payMin", err
	}
	if out.PayMax, err = queryFloat(r, "payMax"); err != nil {
		return out, "payMax", err
	}
	if out.Page, err = queryInt(r, "page", 1); err != nil {
		return out, "page", err
	}
	if out.PageSize, err = queryInt(r, "pageSize", catalog.DefaultPageSize); err != nil {
		return out, "pageSize", err
	}
	return out, "", nil
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q, field, err := parseQuery(r)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidQuery, "invalid "+field+": "+err.Error())
		return
	}

	page, err := h.Catalog.Search(r.Context(), q)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeCatalogFailed, err.Error())
		return
	}
	writeJSON(w, toJobsPage(page))
}

func (h JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidID, "invalid id")
		return
	}
	p, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err, CodeCatalogFailed)
		return
	}
	if p == nil {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "job not found")
		return
	}
	writeJSON(w, toJobDTO(*p))
}
