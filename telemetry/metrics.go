// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	RefreshesStarted    prometheus.Counter
	RefreshesSucceeded  prometheus.Counter
	RefreshesFailed     prometheus.Counter
	MemberLookups       prometheus.Counter
	MemberLookupErrors  prometheus.Counter
	MembersNotFound     prometheus.Counter
	RobloxRequests      prometheus.Counter
	RobloxRequestErrors prometheus.Counter

	// Histograms (seconds)
	RefreshDuration      prometheus.Observer
	MemberFetchDuration  prometheus.Observer
	ProfileFetchDuration prometheus.Observer

	// Gauges
	RosterRowsGauge        prometheus.Gauge
	SnapshotRecordsGauge   prometheus.Gauge
	RefreshInProgressGauge prometheus.Gauge // 1=running,0=idle
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RefreshesStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "roster_refreshes_started_total", Help: "Number of roster refreshes started"})
		RefreshesSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "roster_refreshes_succeeded_total", Help: "Number of roster refreshes that completed and wrote a snapshot"})
		RefreshesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "roster_refreshes_failed_total", Help: "Number of roster refreshes aborted by a fatal error"})
		MemberLookups = promauto.NewCounter(prometheus.CounterOpts{Name: "roster_member_lookups_total", Help: "Number of Discord member lookups attempted"})
		MemberLookupErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "roster_member_lookup_errors_total", Help: "Number of Discord member lookups that failed (transport or API errors, not-found excluded)"})
		MembersNotFound = promauto.NewCounter(prometheus.CounterOpts{Name: "roster_members_not_found_total", Help: "Number of roster IDs no longer present in the guild"})
		RobloxRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "roster_roblox_requests_total", Help: "Number of Roblox API requests issued"})
		RobloxRequestErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "roster_roblox_request_errors_total", Help: "Number of Roblox API requests that failed"})
		RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "roster_refresh_duration_seconds", Help: "End-to-end refresh duration seconds", Buckets: prometheus.DefBuckets})
		MemberFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "roster_member_fetch_duration_seconds", Help: "Discord member fetch phase duration seconds", Buckets: prometheus.DefBuckets})
		ProfileFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "roster_profile_fetch_duration_seconds", Help: "Roblox profile fetch phase duration seconds", Buckets: prometheus.DefBuckets})
		RosterRowsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "roster_rows", Help: "Roster rows loaded by the last refresh"})
		SnapshotRecordsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "roster_snapshot_records", Help: "Records in the last written snapshot"})
		RefreshInProgressGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "roster_refresh_in_progress", Help: "Refresh running=1 idle=0"})
	})
}

// SetRefreshInProgress sets the gauge to 1 while a refresh runs, 0 otherwise.
func SetRefreshInProgress(running bool) {
	if RefreshInProgressGauge != nil {
		if running {
			RefreshInProgressGauge.Set(1)
		} else {
			RefreshInProgressGauge.Set(0)
		}
	}
}

// SetRosterRows records the roster size seen by the current refresh.
func SetRosterRows(n int) {
	if RosterRowsGauge != nil {
		RosterRowsGauge.Set(float64(n))
	}
}

// SetSnapshotRecords records the size of the last written snapshot.
func SetSnapshotRecords(n int) {
	if SnapshotRecordsGauge != nil {
		SnapshotRecordsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
