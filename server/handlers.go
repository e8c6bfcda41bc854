package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tachibanak/roster-sync/config"
	"github.com/tachibanak/roster-sync/reconcile"
	"github.com/tachibanak/roster-sync/snapshot"
)

// Refresher triggers reconciliation runs and reports on them.
// *reconcile.Runner implements it.
type Refresher interface {
	Run(ctx context.Context) (*reconcile.Summary, error)
	LastSummary() *reconcile.Summary
	InProgress() bool
}

// Handlers holds dependencies for all HTTP handlers. baseCtx outlives
// individual requests: refreshes run on it, so a dropped admin connection
// does not cancel a half-finished pipeline.
type Handlers struct {
	cfg       *config.Config
	store     *snapshot.Store
	runner    Refresher
	baseCtx   context.Context
	startedAt time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, cfg *config.Config, store *snapshot.Store, runner Refresher) *Handlers {
	return &Handlers{
		cfg:       cfg,
		store:     store,
		runner:    runner,
		baseCtx:   ctx,
		startedAt: time.Now(),
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
