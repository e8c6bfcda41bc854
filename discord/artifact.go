package discord

import (
	"encoding/json"
	"fmt"

	"github.com/tachibanak/roster-sync/snapshot"
)

// WriteMembersFile persists the member map as the intermediate refresh
// artifact, atomically so a crash mid-refresh never leaves a torn file. The
// document is a JSON object keyed by Discord ID, including not-found markers.
func WriteMembersFile(path string, members map[string]Member) error {
	if members == nil {
		members = map[string]Member{}
	}
	data, err := json.MarshalIndent(members, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal members: %w", err)
	}
	if err := snapshot.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write members file: %w", err)
	}
	return nil
}
