package roster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestLoadMalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing roblox column", "DiscordID,DiscordUsername"},
		{"missing id column", "DiscordUsername,RobloxUsername"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeCSV(t, tt.header+"\n"))
			if !errors.Is(err, ErrMalformedSource) {
				t.Fatalf("err = %v, want ErrMalformedSource", err)
			}
		})
	}
}

func TestLoadNormalizesRows(t *testing.T) {
	src := `DiscordID,DiscordUsername,RobloxUsername,Notes
123,alpha,CoolBuilder,founding member
456, beta ,coolbuilder,
,ghost,NoID,
abc,badid,Whatever,
123,alpha-dupe,Other,
789,gamma,,
`
	ro, err := Load(writeCSV(t, src))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(ro.Entries) != 3 {
		t.Fatalf("entries = %d, want 3 (%+v)", len(ro.Entries), ro.Entries)
	}
	if ro.Entries[0].DiscordID != "123" || ro.Entries[1].DiscordID != "456" || ro.Entries[2].DiscordID != "789" {
		t.Errorf("unexpected entry order: %+v", ro.Entries)
	}
	if ro.Entries[1].DiscordUsername != "beta" {
		t.Errorf("username not trimmed: %q", ro.Entries[1].DiscordUsername)
	}
	if len(ro.GameUsernames) != 1 || ro.GameUsernames[0] != "CoolBuilder" {
		t.Errorf("GameUsernames = %v, want [CoolBuilder] (case-insensitive dedup, first casing kept)", ro.GameUsernames)
	}
	if len(ro.Warnings) != 3 {
		t.Errorf("warnings = %d (%v), want 3", len(ro.Warnings), ro.Warnings)
	}
}

func TestLoadHeaderOrderIndependent(t *testing.T) {
	src := "RobloxUsername,DiscordID,DiscordUsername\nBuilderOne,42,delta\n"
	ro, err := Load(writeCSV(t, src))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(ro.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(ro.Entries))
	}
	e := ro.Entries[0]
	if e.DiscordID != "42" || e.DiscordUsername != "delta" || e.RobloxUsername != "BuilderOne" {
		t.Errorf("entry = %+v", e)
	}
}

func TestLoadHeaderOnly(t *testing.T) {
	ro, err := Load(writeCSV(t, "DiscordID,DiscordUsername,RobloxUsername\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(ro.Entries) != 0 || len(ro.Warnings) != 0 {
		t.Errorf("expected empty roster, got %+v", ro)
	}
}

func TestLoadShortRowTolerated(t *testing.T) {
	ro, err := Load(writeCSV(t, "DiscordID,DiscordUsername,RobloxUsername\n99,solo\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(ro.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(ro.Entries))
	}
	if ro.Entries[0].RobloxUsername != "" {
		t.Errorf("RobloxUsername = %q, want empty for short row", ro.Entries[0].RobloxUsername)
	}
}
