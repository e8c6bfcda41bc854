// Package snapshot persists the merged roster as a single JSON document,
// replaced atomically on every successful refresh.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tachibanak/roster-sync/roster"
)

// ErrCorrupt means the snapshot file exists but cannot be parsed. Readers
// treat it as a degraded-read condition, distinct from an absent snapshot.
var ErrCorrupt = errors.New("corrupt snapshot")

// Store reads and writes the merged roster snapshot at a fixed path.
type Store struct {
	Path string
}

// Write replaces the snapshot with records via a temp file and rename, so
// readers never observe a partial document. The file is always a JSON array,
// even for an empty roster.
func (s *Store) Write(records []roster.MergedRecord) error {
	if records == nil {
		records = []roster.MergedRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := WriteFileAtomic(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Read returns the current snapshot. A missing file returns (nil, nil): the
// service has simply never completed a refresh. An unparsable file returns
// an error wrapping ErrCorrupt.
func (s *Store) Read() ([]roster.MergedRecord, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var records []roster.MergedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return records, nil
}

// Stat reports the snapshot's last write time and size. ok is false when no
// snapshot exists yet.
func (s *Store) Stat() (mtime time.Time, size int64, ok bool) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, 0, false
	}
	return fi.ModTime(), fi.Size(), true
}

// WriteFileAtomic writes data to path via a sibling temp file and rename.
// The parent directory is created if needed.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
