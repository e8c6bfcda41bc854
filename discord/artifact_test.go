package discord

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteMembersFile(t *testing.T) {
	joined := time.Date(2022, 3, 14, 9, 0, 0, 0, time.UTC)
	members := map[string]Member{
		"123": {Username: "alpha", DisplayName: "Alpha", JoinedAt: &joined},
		"456": {Error: NotFoundMarker},
	}
	path := filepath.Join(t.TempDir(), "discord_members.json")
	if err := WriteMembersFile(path, members); err != nil {
		t.Fatalf("WriteMembersFile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var got map[string]Member
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got["123"].Username != "alpha" || got["123"].JoinedAt == nil {
		t.Errorf("member 123 = %+v", got["123"])
	}
	if got["456"].Error != NotFoundMarker {
		t.Errorf("member 456 error = %q, want %q", got["456"].Error, NotFoundMarker)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestWriteMembersFileNilMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discord_members.json")
	if err := WriteMembersFile(path, nil); err != nil {
		t.Fatalf("WriteMembersFile() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	var got map[string]Member
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("entries = %d, want 0", len(got))
	}
}
