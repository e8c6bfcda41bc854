// Command roster-sync is the main entrypoint for the roster reconciliation service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Wires the Roblox client, snapshot store, and refresh runner.
//   - Exposes the HTTP API: the merged roster snapshot, admin refresh/status,
//     /healthz, /readyz, /status, and /metrics.
//
// Refreshes are operator-triggered via POST /admin/refresh (plus an optional
// one at boot). Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tachibanak/roster-sync/config"
	"github.com/tachibanak/roster-sync/reconcile"
	"github.com/tachibanak/roster-sync/robloxapi"
	"github.com/tachibanak/roster-sync/server"
	"github.com/tachibanak/roster-sync/snapshot"
	"github.com/tachibanak/roster-sync/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("roster-sync", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// The read API serves whatever snapshot exists even without refresh
	// credentials; refreshes need them.
	if err := cfg.ValidateRefreshReady(); err != nil {
		slog.Warn("refresh credentials not configured - serving existing snapshot only",
			slog.Any("err", err))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := &snapshot.Store{Path: cfg.SnapshotPath()}
	roblox := &robloxapi.Client{
		AvatarSize:  cfg.AvatarSize,
		BatchDelay:  cfg.BatchDelay,
		DetailDelay: cfg.DetailDelay,
	}
	runner := &reconcile.Runner{Cfg: cfg, Roblox: roblox, Store: store}

	// Optional refresh at boot so a fresh deploy starts with data instead of
	// an empty snapshot (REFRESH_ON_START=1)
	if os.Getenv("REFRESH_ON_START") == "1" {
		go func() {
			slog.Info("startup refresh triggered")
			if _, err := runner.Run(ctx); err != nil {
				slog.Error("startup refresh failed", slog.Any("err", err))
			}
		}()
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (snapshot API, admin, health, metrics)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	slog.Info("starting http server", slog.String("addr", addr))
	if err := server.Start(ctx, cfg, store, runner, addr); err != nil {
		slog.Error("http server exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}
