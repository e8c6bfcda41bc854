// Package roster loads the operator-maintained CSV that seeds a refresh and
// defines the merged record shape the dashboard consumes.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrSourceNotFound means the roster CSV does not exist at the configured path.
	ErrSourceNotFound = errors.New("roster source not found")
	// ErrMalformedSource means the CSV exists but lacks the required header columns.
	ErrMalformedSource = errors.New("malformed roster source")
)

// Required header columns, matched by exact name, order-independent.
const (
	colDiscordID       = "DiscordID"
	colDiscordUsername = "DiscordUsername"
	colRobloxUsername  = "RobloxUsername"
)

// Entry is one roster row after normalization. DiscordID is a non-empty
// numeric string, unique within a Roster. RobloxUsername may be empty.
type Entry struct {
	DiscordID       string
	DiscordUsername string
	RobloxUsername  string
}

// Roster is the parsed CSV plus the deduplicated Roblox username set used
// for batch ID resolution. GameUsernames keeps first-seen casing in
// first-seen order; duplicates differing only by case collapse to one.
type Roster struct {
	Entries       []Entry
	GameUsernames []string
	Warnings      []string
}

// Load reads and validates the roster CSV. A missing file maps to
// ErrSourceNotFound and a header missing required columns to
// ErrMalformedSource; both abort the refresh. Individual bad rows (empty or
// non-numeric DiscordID, duplicates, ragged records) are skipped with a
// warning so one bad row never blocks the rest.
func Load(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colDiscordID, colDiscordUsername, colRobloxUsername} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrMalformedSource, required)
		}
	}

	ro := &Roster{}
	seenID := map[string]bool{}
	seenGame := map[string]bool{}
	row := 1
	for {
		rec, err := r.Read()
		row++
		if err == io.EOF {
			break
		}
		if err != nil {
			ro.warnf("row %d: %v", row, err)
			continue
		}
		field := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		id := field(colDiscordID)
		if id == "" {
			ro.warnf("row %d: empty DiscordID", row)
			continue
		}
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			ro.warnf("row %d: non-numeric DiscordID %q", row, id)
			continue
		}
		if seenID[id] {
			ro.warnf("row %d: duplicate DiscordID %s, first occurrence kept", row, id)
			continue
		}
		seenID[id] = true
		e := Entry{
			DiscordID:       id,
			DiscordUsername: field(colDiscordUsername),
			RobloxUsername:  field(colRobloxUsername),
		}
		ro.Entries = append(ro.Entries, e)
		if e.RobloxUsername != "" {
			key := strings.ToLower(e.RobloxUsername)
			if !seenGame[key] {
				seenGame[key] = true
				ro.GameUsernames = append(ro.GameUsernames, e.RobloxUsername)
			}
		}
	}
	return ro, nil
}

func (r *Roster) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	slog.Warn("roster row skipped", slog.String("detail", msg))
}
