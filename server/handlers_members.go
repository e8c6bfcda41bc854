package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tachibanak/roster-sync/roster"
	"github.com/tachibanak/roster-sync/snapshot"
)

// membersPayload is the list response: the snapshot array plus its count
// and last write time (null before the first refresh).
type membersPayload struct {
	Records   []roster.MergedRecord `json:"records"`
	Count     int                   `json:"count"`
	UpdatedAt *time.Time            `json:"updated_at"`
}

// HandleMembersList serves the merged snapshot. An optional q parameter
// filters case-insensitively on Discord username, display name, and Roblox
// username. A service that has never refreshed returns an empty list.
func (h *Handlers) HandleMembersList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	records, err := h.readSnapshot(w)
	if err != nil {
		return
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		records = filterRecords(records, q)
	}
	payload := membersPayload{Records: records, Count: len(records)}
	if mtime, _, ok := h.store.Stat(); ok {
		t := mtime.UTC()
		payload.UpdatedAt = &t
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// HandleMemberDetail serves one merged record by Discord ID from
// /api/members/{id}.
func (h *Handlers) HandleMemberDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/members/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	records, err := h.readSnapshot(w)
	if err != nil {
		return
	}
	for _, rec := range records {
		if rec.DiscordID == id {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(rec)
			return
		}
	}
	http.NotFound(w, r)
}

// readSnapshot loads the snapshot for read endpoints, writing the error
// response itself on failure. The returned slice is never nil: an absent
// snapshot reads as empty, only an unparsable one fails.
func (h *Handlers) readSnapshot(w http.ResponseWriter) ([]roster.MergedRecord, error) {
	records, err := h.store.Read()
	if err != nil {
		msg := "snapshot unreadable"
		if errors.Is(err, snapshot.ErrCorrupt) {
			msg = "corrupt snapshot"
		}
		slog.Error("snapshot read failed", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, msg)
		return nil, err
	}
	if records == nil {
		records = []roster.MergedRecord{}
	}
	return records, nil
}

// filterRecords keeps records whose usernames or display name contain q,
// case-insensitively.
func filterRecords(records []roster.MergedRecord, q string) []roster.MergedRecord {
	q = strings.ToLower(q)
	out := make([]roster.MergedRecord, 0, len(records))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.DiscordUsername), q) ||
			strings.Contains(strings.ToLower(rec.DiscordDisplayName), q) ||
			strings.Contains(strings.ToLower(rec.RobloxUsername), q) {
			out = append(out, rec)
		}
	}
	return out
}
