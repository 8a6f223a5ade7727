package httpapi

import "net/http"

// NewMux returns the raw mux; Handler wraps it with the middleware chain.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{Scheduler: d.Scheduler}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Jobs
	jh := JobsHandler{Catalog: d.Catalog}
	mux.HandleFunc("/api/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.List,
	}))
	mux.HandleFunc("/api/jobs/{id}", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.Get,
	}))

	// Ingest
	ih := IngestHandler{Runner: d.Ingest}
	mux.HandleFunc("/api/ingest/{source}", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ih.Run,
	}))

	// Runs
	rh := RunsHandler{Runs: d.Runs}
	mux.HandleFunc("/api/runs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.List,
	}))
	mux.HandleFunc("/api/runs/{id}", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Get,
	}))

	// Analytics
	ah := AnalyticsHandler{Catalog: d.Catalog}
	mux.HandleFunc("/api/analytics/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.Stats,
	}))
	mux.HandleFunc("/api/analytics/by-trade", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.ByTrade,
	}))
	mux.HandleFunc("/api/analytics/by-state", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.ByState,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/scrape-token", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetScrapeToken,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path)
	})

	return mux
}

// Handler is the mux behind RequestID, Recover, AccessLog and Cors.
func Handler(d Deps) http.Handler {
	return Chain(NewMux(d), RequestID, Recover, AccessLog, Cors)
}
