package httpapi

import (
	"context"
	"net/http"
	"time"

	"jobintel-engine/internal/catalog"
)

type AnalyticsHandler struct {
	Catalog *catalog.Service
}

func (h AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	since, ok := sinceParam(w, r)
	if !ok {
		return
	}
	st, err := h.Catalog.Stats(r.Context(), since)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeCatalogFailed, err.Error())
		return
	}
	writeJSON(w, st)
}

func (h AnalyticsHandler) ByTrade(w http.ResponseWriter, r *http.Request) {
	h.grouped(w, r, h.Catalog.ByTrade)
}

func (h AnalyticsHandler) ByState(w http.ResponseWriter, r *http.Request) {
	h.grouped(w, r, h.Catalog.ByState)
}

func (h AnalyticsHandler) grouped(w http.ResponseWriter, r *http.Request, fn func(context.Context, *time.Time) (map[string]int, error)) {
	since, ok := sinceParam(w, r)
	if !ok {
		return
	}
	m, err := fn(r.Context(), since)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeCatalogFailed, err.Error())
		return
	}
	if m == nil {
		m = map[string]int{}
	}
	writeJSON(w, m)
}

func sinceParam(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	since, err := queryTime(r, "since")
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidQuery, "invalid since: "+err.Error())
		return nil, false
	}
	return since, true
}
