package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"roomchat/internal/rooms"
)

// FileSnapshot keeps the room table in one indented JSON file. Saves go to a
// temp file that is renamed over the old snapshot, so readers never see a
// half-written file.
type FileSnapshot struct {
	mu   sync.Mutex
	path string
}

// NewFileSnapshot returns a snapshotter for path. The parent directory is
// created on first save.
func NewFileSnapshot(path string) *FileSnapshot {
	if path == "" {
		path = "rooms_data.json"
	}
	return &FileSnapshot{path: path}
}

// Path returns the snapshot location.
func (f *FileSnapshot) Path() string {
	return f.path
}

// Load reads the snapshot. A missing file yields an empty table.
func (f *FileSnapshot) Load(_ context.Context) (rooms.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rooms.Snapshot{}, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap := rooms.Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	return snap, nil
}

// Save replaces the snapshot with snap.
func (f *FileSnapshot) Save(_ context.Context, snap rooms.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Close is a no-op; it lets FileSnapshot and Store share a shutdown path.
func (f *FileSnapshot) Close() error {
	return nil
}
