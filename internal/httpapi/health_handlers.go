package httpapi

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	Scheduler EntryLister
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	}
	if h.Scheduler != nil {
		entries := h.Scheduler.Entries()
		body["scheduledEntries"] = len(entries)
		var next time.Time
		for _, e := range entries {
			if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
				next = e.Next
			}
		}
		if !next.IsZero() {
			body["nextRunAt"] = next.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, body)
}
