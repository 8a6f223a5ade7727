package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/poll"
)

// Error codes returned in the "code" field of an error body.
const (
	CodeInvalidQuery     = "invalid_query"
	CodeInvalidID        = "invalid_id"
	CodeInvalidJSON      = "invalid_json"
	CodeInvalidSource    = "invalid_source"
	CodeInvalidToken     = "invalid_token"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeFetchFailed      = "fetch_failed"
	CodeRunFinalized     = "run_finalized"
	CodeIngestFailed     = "ingest_failed"
	CodeCatalogFailed    = "catalog_failed"
	CodeRunsFailed       = "runs_failed"
	CodeConfigRejected   = "config_rejected"
	CodeConfigReload     = "config_reload_failed"
	CodeKeyringFailed    = "keyring_failed"
	CodeNoStreaming      = "stream_unsupported"
	CodeInternal         = "internal_error"
)

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type APIError struct {
	Error ErrorBody `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, APIError{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFrom(r.Context()),
	}})
}

// writeFailure answers with the status that matches an engine error. Errors
// it does not recognise are a 500 carrying fallback as the code.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, poll.ErrUnknownSource):
		WriteError(w, r, http.StatusBadRequest, CodeInvalidSource, err.Error())
	case errors.Is(err, domain.ErrFetch):
		WriteError(w, r, http.StatusBadGateway, CodeFetchFailed, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, domain.ErrRunFinalized):
		WriteError(w, r, http.StatusConflict, CodeRunFinalized, err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, fallback, err.Error())
	}
}
