package httpapi

import (
	"net/http"
	"strings"
	"sync/atomic"

	"jobintel-engine/internal/config"
	"jobintel-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setScrapeTokenReq struct {
	Token string `json:"token"`
}

func (h SecretsHandler) SetScrapeToken(w http.ResponseWriter, r *http.Request) {
	var req setScrapeTokenReq
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, "invalid json")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidToken, "token is required")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetScrapeToken(cfg.ScrapeAPI.KeyringAccount, req.Token); err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeKeyringFailed, "failed to store token: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
