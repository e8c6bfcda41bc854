package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tachibanak/roster-sync/roster"
)

func sampleRecords() []roster.MergedRecord {
	join := time.Date(2022, 3, 14, 9, 26, 53, 0, time.UTC)
	created := time.Date(2019, 8, 1, 12, 0, 0, 0, time.UTC)
	rid := int64(88421)
	return []roster.MergedRecord{
		{
			DiscordUsername:     "alpha",
			DiscordDisplayName:  "Alpha",
			DiscordID:           "123",
			DiscordJoinDate:     &join,
			DiscordCreationDate: &created,
			RobloxUsername:      "AlphaBuilds",
			RobloxID:            &rid,
			RobloxCreationDate:  &created,
			RobloxAvatarURL:     "https://example.com/a.png",
		},
		{
			DiscordUsername:    "beta",
			DiscordDisplayName: "N/A",
			DiscordID:          "456",
			RobloxAvatarURL:    "https://placehold.co/150x150/5865F2/FFFFFF?text=N/A",
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := &Store{Path: filepath.Join(t.TempDir(), "merged_roster.json")}
	want := sampleRecords()
	if err := store.Write(want); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("records = %d, want %d", len(got), len(want))
	}
	if got[0].DiscordID != "123" || got[0].RobloxID == nil || *got[0].RobloxID != 88421 {
		t.Errorf("first record mismatch: %+v", got[0])
	}
	if got[1].RobloxID != nil || got[1].DiscordJoinDate != nil {
		t.Errorf("nullable fields not preserved: %+v", got[1])
	}
	if !got[0].DiscordJoinDate.Equal(*want[0].DiscordJoinDate) {
		t.Errorf("join date = %v, want %v", got[0].DiscordJoinDate, want[0].DiscordJoinDate)
	}
}

func TestWriteDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := &Store{Path: filepath.Join(dir, "a.json")}
	b := &Store{Path: filepath.Join(dir, "b.json")}
	records := sampleRecords()
	if err := a.Write(records); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := b.Write(records); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	da, _ := os.ReadFile(a.Path)
	db, _ := os.ReadFile(b.Path)
	if !bytes.Equal(da, db) {
		t.Error("same records produced different snapshot bytes")
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Path: filepath.Join(dir, "merged_roster.json")}
	if err := store.Write(sampleRecords()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if _, err := os.Stat(store.Path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestWriteCreatesParentDir(t *testing.T) {
	store := &Store{Path: filepath.Join(t.TempDir(), "nested", "deeper", "merged_roster.json")}
	if err := store.Write(sampleRecords()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if _, err := os.Stat(store.Path); err != nil {
		t.Errorf("snapshot missing after write: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	store := &Store{Path: filepath.Join(t.TempDir(), "absent.json")}
	records, err := store.Read()
	if err != nil {
		t.Fatalf("Read() error: %v, want nil for missing snapshot", err)
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
}

func TestReadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"truncated", `[{"discordId":"123"`},
		{"wrong shape", `{"not":"an array"}`},
		{"garbage", "not json at all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "merged_roster.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("seed file: %v", err)
			}
			store := &Store{Path: path}
			_, err := store.Read()
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestWriteReplacesWhole(t *testing.T) {
	store := &Store{Path: filepath.Join(t.TempDir(), "merged_roster.json")}
	if err := store.Write(sampleRecords()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := store.Write(nil); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	records, err := store.Read()
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0 after overwrite", len(records))
	}
}

func TestStat(t *testing.T) {
	store := &Store{Path: filepath.Join(t.TempDir(), "merged_roster.json")}
	if _, _, ok := store.Stat(); ok {
		t.Error("Stat ok for missing snapshot")
	}
	if err := store.Write(sampleRecords()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	mtime, size, ok := store.Stat()
	if !ok || size == 0 || mtime.IsZero() {
		t.Errorf("Stat = (%v, %d, %v), want populated", mtime, size, ok)
	}
}
