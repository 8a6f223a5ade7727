package httpapi

import (
	"net/http"

	"jobintel-engine/internal/domain"
)

const maxRunsLimit = 200

type RunsHandler struct {
	Runs RunReader
}

func (h RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit <= 0 {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidQuery, "invalid limit")
		return
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	list, err := h.Runs.Recent(r.Context(), limit)
	if err != nil {
		writeFailure(w, r, err, CodeRunsFailed)
		return
	}
	if list == nil {
		list = []domain.IngestRun{}
	}
	writeJSON(w, list)
}

func (h RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidID, "invalid id")
		return
	}
	run, err := h.Runs.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err, CodeRunsFailed)
		return
	}
	writeJSON(w, run)
}
