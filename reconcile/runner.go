package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tachibanak/roster-sync/config"
	"github.com/tachibanak/roster-sync/discord"
	"github.com/tachibanak/roster-sync/robloxapi"
	"github.com/tachibanak/roster-sync/roster"
	"github.com/tachibanak/roster-sync/snapshot"
	"github.com/tachibanak/roster-sync/telemetry"
)

// ErrRefreshInProgress is returned when a refresh is triggered while another
// is still running. Triggers are rejected, never queued.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// MemberSession is the slice of a live gateway session a refresh needs:
// member lookups plus teardown.
type MemberSession interface {
	discord.MemberSource
	Close() error
}

// Summary is the operator-facing accounting of one refresh run, served by
// the admin status endpoint and logged at completion.
type Summary struct {
	RunID             string    `json:"run_id"`
	StartedAt         time.Time `json:"started_at"`
	DurationMS        int64     `json:"duration_ms"`
	RosterRows        int       `json:"roster_rows"`
	MembersFetched    int       `json:"members_fetched"`
	MembersNotFound   int       `json:"members_not_found"`
	MemberErrors      int       `json:"member_errors"`
	MembersSkipped    int       `json:"members_skipped"`
	UsernamesResolved int       `json:"usernames_resolved"`
	ProfilesFetched   int       `json:"profiles_fetched"`
	Records           int       `json:"records"`
	Warnings          []string  `json:"warnings,omitempty"`
	Error             string    `json:"error,omitempty"`
}

func (s *Summary) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Runner executes refreshes one at a time against a shared Roblox client and
// snapshot store. Connect may be overridden in tests; nil means a real
// gateway session.
type Runner struct {
	Cfg     *config.Config
	Roblox  *robloxapi.Client
	Store   *snapshot.Store
	Connect func(token string) (MemberSession, error)

	mu      sync.Mutex // serializes Run; TryLock implements the reject-don't-queue guard
	running atomic.Bool
	lastMu  sync.RWMutex
	last    *Summary
}

// InProgress reports whether a refresh is currently running.
func (r *Runner) InProgress() bool { return r.running.Load() }

// LastSummary returns the most recent refresh summary, or nil before the
// first run. Summaries are not mutated after publication.
func (r *Runner) LastSummary() *Summary {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	return r.last
}

func (r *Runner) setLast(s *Summary) {
	r.lastMu.Lock()
	r.last = s
	r.lastMu.Unlock()
}

// Run executes one full refresh: roster load, Discord member fetch, Roblox
// resolution, merge, snapshot write. It returns ErrRefreshInProgress (and no
// Summary) when another run holds the guard. Any other error aborts the run
// before the snapshot is touched; the returned Summary then carries the
// error and whatever accounting was gathered.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if !r.mu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer r.mu.Unlock()

	telemetry.Init()
	r.running.Store(true)
	telemetry.SetRefreshInProgress(true)
	defer func() {
		r.running.Store(false)
		telemetry.SetRefreshInProgress(false)
	}()

	start := time.Now()
	sum := &Summary{RunID: uuid.New().String(), StartedAt: start.UTC()}
	ctx = telemetry.WithCorrelation(ctx, sum.RunID)
	ctx, span := telemetry.StartSpan(ctx, "reconcile", "refresh", attribute.String("run_id", sum.RunID))
	defer span.End()

	telemetry.RefreshesStarted.Inc()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "refresh"))
	logger.Info("refresh started")

	err := r.refresh(ctx, logger, sum)
	sum.DurationMS = time.Since(start).Milliseconds()
	telemetry.RefreshDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		sum.Error = err.Error()
		telemetry.RefreshesFailed.Inc()
		telemetry.RecordError(span, err)
		logger.Error("refresh failed", slog.Any("err", err), slog.Int64("duration_ms", sum.DurationMS))
	} else {
		telemetry.RefreshesSucceeded.Inc()
		telemetry.SetSpanSuccess(span)
		logger.Info("refresh complete",
			slog.Int("records", sum.Records),
			slog.Int("warnings", len(sum.Warnings)),
			slog.Int64("duration_ms", sum.DurationMS))
	}
	r.setLast(sum)
	return sum, err
}

func (r *Runner) refresh(ctx context.Context, logger *slog.Logger, sum *Summary) error {
	if err := r.Cfg.ValidateRefreshReady(); err != nil {
		return err
	}

	ro, err := roster.Load(r.Cfg.RosterPath)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	sum.RosterRows = len(ro.Entries)
	sum.Warnings = append(sum.Warnings, ro.Warnings...)
	telemetry.SetRosterRows(len(ro.Entries))
	logger.Info("roster loaded",
		slog.Int("rows", len(ro.Entries)),
		slog.Int("game_usernames", len(ro.GameUsernames)))

	ids := make([]string, 0, len(ro.Entries))
	for _, e := range ro.Entries {
		ids = append(ids, e.DiscordID)
	}

	var fetch *discord.FetchResult
	var fetchErr error
	took := telemetry.TimeFunc(telemetry.MemberFetchDuration, func() {
		fetch, fetchErr = r.fetchMembers(ctx, logger, ids)
	})
	if fetchErr != nil {
		return fetchErr
	}
	sum.MembersFetched = fetch.Fetched
	sum.MembersNotFound = fetch.NotFound
	sum.MemberErrors = fetch.Failed
	sum.MembersSkipped = fetch.Skipped
	sum.Warnings = append(sum.Warnings, fetch.Warnings...)
	telemetry.MemberLookups.Add(float64(fetch.Fetched + fetch.NotFound + fetch.Failed))
	telemetry.MemberLookupErrors.Add(float64(fetch.Failed))
	telemetry.MembersNotFound.Add(float64(fetch.NotFound))
	logger.Info("discord members fetched",
		slog.Int("fetched", fetch.Fetched),
		slog.Int("not_found", fetch.NotFound),
		slog.Int("failed", fetch.Failed),
		slog.Int("skipped", fetch.Skipped),
		slog.Duration("took", took))

	if len(ro.GameUsernames) > 0 {
		telemetry.RobloxRequests.Inc()
	}
	idMap, err := r.Roblox.ResolveUsernames(ctx, ro.GameUsernames)
	if err != nil {
		// Every row degrades to unresolved Roblox fields instead of the
		// whole refresh aborting.
		telemetry.RobloxRequestErrors.Inc()
		sum.warnf("roblox username resolution: %v", err)
		logger.Warn("roblox username resolution failed", slog.Any("err", err))
		idMap = map[string]int64{}
	}
	sum.UsernamesResolved = len(idMap)

	var profiles *robloxapi.ProfileResult
	var profErr error
	took = telemetry.TimeFunc(telemetry.ProfileFetchDuration, func() {
		profiles, profErr = r.Roblox.FetchProfiles(ctx, orderedIDs(ro.GameUsernames, idMap))
	})
	if profErr != nil {
		return fmt.Errorf("fetch roblox profiles: %w", profErr)
	}
	sum.ProfilesFetched = len(profiles.Profiles)
	sum.Warnings = append(sum.Warnings, profiles.Warnings...)
	telemetry.RobloxRequests.Add(float64(profiles.Requests))
	telemetry.RobloxRequestErrors.Add(float64(profiles.RequestErrors))
	logger.Info("roblox profiles fetched",
		slog.Int("resolved", len(idMap)),
		slog.Int("profiles", len(profiles.Profiles)),
		slog.Int("request_errors", profiles.RequestErrors),
		slog.Duration("took", took))

	// A canceled run must never replace the snapshot with degraded data.
	if err := ctx.Err(); err != nil {
		return err
	}
	records := Merge(ro.Entries, fetch.Members, idMap, profiles.Profiles)
	sum.Records = len(records)
	if err := r.Store.Write(records); err != nil {
		return err
	}
	telemetry.SetSnapshotRecords(len(records))
	logger.Info("snapshot written", slog.String("path", r.Store.Path), slog.Int("records", len(records)))
	return nil
}

// fetchMembers owns the gateway session for the member phase: connect,
// fetch, dump the intermediate artifact, tear down. Close is deferred so
// teardown happens on every exit path.
func (r *Runner) fetchMembers(ctx context.Context, logger *slog.Logger, ids []string) (*discord.FetchResult, error) {
	session, err := r.connect()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("discord session close", slog.Any("err", err))
		}
	}()

	res, err := discord.FetchMembers(ctx, session, r.Cfg.GuildID, ids)
	if err != nil {
		return nil, err
	}
	if err := discord.WriteMembersFile(r.Cfg.MembersArtifactPath(), res.Members); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("members artifact: %v", err))
		logger.Warn("members artifact write failed", slog.Any("err", err))
	}
	return res, nil
}

func (r *Runner) connect() (MemberSession, error) {
	if r.Connect != nil {
		return r.Connect(r.Cfg.DiscordBotToken)
	}
	return discord.Connect(r.Cfg.DiscordBotToken)
}

// orderedIDs maps the roster's username order onto resolved IDs, dropping
// duplicates, so profile fetches and their pacing follow roster order.
func orderedIDs(usernames []string, ids map[string]int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, u := range usernames {
		if id, ok := ids[strings.ToLower(u)]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
