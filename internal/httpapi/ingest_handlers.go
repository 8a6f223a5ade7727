package httpapi

import (
	"net/http"
	"strings"

	"jobintel-engine/internal/poll"
)

type IngestHandler struct {
	Runner Ingester
}

// Run fetches from one source (or "all") and reconciles the batch before
// answering. Fetch failures are reported as 502.
func (h IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	source := strings.ToLower(strings.TrimSpace(r.PathValue("source")))
	keywords := strings.Fields(r.URL.Query().Get("keywords"))
	if len(keywords) == 0 {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidQuery, "keywords are required")
		return
	}
	maxResults, err := queryInt(r, "maxResults", poll.DefaultMaxResults)
	if err != nil || maxResults <= 0 {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidQuery, "invalid maxResults")
		return
	}

	out, err := h.Runner.RunOnce(r.Context(), poll.Request{
		Source:     source,
		Keywords:   keywords,
		Location:   strings.TrimSpace(r.URL.Query().Get("location")),
		MaxResults: maxResults,
		RequestID:  RequestIDFrom(r.Context()),
	})
	if err != nil {
		writeFailure(w, r, err, CodeIngestFailed)
		return
	}
	writeJSON(w, toIngestResponse(out))
}
