package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tachibanak/roster-sync/reconcile"
)

// HandleAdminRefresh runs the reconciliation pipeline synchronously and
// returns its summary. The run is bound to the server's base context, not
// the request: an admin dropping the connection does not abort a
// half-finished refresh. A run already in flight is reported as a conflict,
// never queued.
func (h *Handlers) HandleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sum, err := h.runner.Run(h.baseCtx)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.Is(err, reconcile.ErrRefreshInProgress):
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "conflict", "error": err.Error()})
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "error": err.Error(), "summary": sum})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "summary": sum})
	}
}

// HandleAdminStatus reports the last refresh outcome and current snapshot
// state.
func (h *Handlers) HandleAdminStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]any{
		"refresh_in_progress": h.runner.InProgress(),
	}
	if sum := h.runner.LastSummary(); sum != nil {
		resp["last_refresh"] = sum
	}
	if mtime, size, ok := h.store.Stat(); ok {
		resp["snapshot"] = map[string]any{
			"path":       h.store.Path,
			"updated_at": mtime.UTC(),
			"size_bytes": size,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleAdminConfig returns the redacted runtime configuration. Secrets are
// masked, never echoed.
func (h *Handlers) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.cfg.Redacted())
}
