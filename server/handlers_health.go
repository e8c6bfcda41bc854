package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// HandleHealthz responds to liveness probe requests. The read path has no
// external dependency, so a live process is a healthy one.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed checks:
// a writable data dir, a parseable (or absent) snapshot, and the roster
// source and credentials the next refresh needs.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"data_dir", func() error { return os.MkdirAll(h.cfg.DataDir, 0o755) }},
		{"snapshot", func() error {
			_, err := h.store.Read()
			return err
		}},
		{"roster_source", func() error {
			_, err := os.Stat(h.cfg.RosterPath)
			return err
		}},
		{"credentials", func() error { return h.cfg.ValidateRefreshReady() }},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			// Set headers before writing status code
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns a lightweight public status summary: uptime, the
// snapshot's size and age, and whether a refresh is running. Row-level
// detail stays on the admin endpoint.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]any{
		"service":             "roster-sync",
		"uptime_seconds":      int(time.Since(h.startedAt).Seconds()),
		"refresh_in_progress": h.runner.InProgress(),
	}
	if records, err := h.store.Read(); err == nil {
		resp["records"] = len(records)
	} else {
		resp["snapshot_error"] = true
	}
	if mtime, size, ok := h.store.Stat(); ok {
		resp["snapshot_updated_at"] = mtime.UTC()
		resp["snapshot_size_bytes"] = size
	}
	if sum := h.runner.LastSummary(); sum != nil {
		resp["last_refresh_at"] = sum.StartedAt
		resp["last_refresh_ok"] = sum.Error == ""
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
