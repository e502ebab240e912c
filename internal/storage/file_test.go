package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/rooms"
)

func TestFileSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rooms_data.json")
	snaps := NewFileSnapshot(path)
	ctx := context.Background()

	want := sampleSnapshot()
	require.NoError(t, snaps.Save(ctx, want))

	got, err := snaps.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFileSnapshotIsReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms_data.json")
	snaps := NewFileSnapshot(path)
	require.NoError(t, snaps.Save(context.Background(), rooms.Snapshot{
		"ABCD": {MemberCount: 1, Messages: []rooms.Message{{Name: "alice", Message: "hi", Timestamp: "t-1"}}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ABCD":{"memberCount":1,"messages":[{"name":"alice","message":"hi","timestamp":"t-1"}]}}`, string(data))
	assert.Contains(t, string(data), "\n  \"ABCD\"")
}

func TestFileSnapshotMissingFileIsEmpty(t *testing.T) {
	snaps := NewFileSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	got, err := snaps.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileSnapshotCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms_data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	snaps := NewFileSnapshot(path)

	_, err := snaps.Load(context.Background())
	require.Error(t, err)

	// the room store treats an unreadable snapshot as empty and keeps going
	store := rooms.NewStore(context.Background(), snaps, rooms.Options{})
	assert.Equal(t, 0, store.Len())
	code, err := store.CreateRoom(context.Background())
	require.NoError(t, err)

	got, err := snaps.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got, code)
}
