// Package rooms holds the process-wide room table: codes, member counts and
// message history, snapshotted to durable storage after every mutation.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrRoomNotFound is returned when a code does not name a known room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrStorage wraps snapshot write failures. The in-memory table keeps the
	// change, so it can be ahead of what is on disk.
	ErrStorage = errors.New("snapshot write failed")
)

// Room is the persisted state of one chat room.
type Room struct {
	MemberCount int       `json:"memberCount"`
	Messages    []Message `json:"messages"`
}

// Snapshot is the full room table keyed by code.
type Snapshot map[string]Room

// Snapshotter persists and reloads the whole room table.
type Snapshotter interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	CodeLength int
	// Intn returns a uniform int in [0, n). Defaults to math/rand.
	Intn func(n int) int
}

// Store is the mutex-guarded room table. Every mutator holds the lock for the
// whole mutate-then-persist sequence so concurrent writers never lose updates.
type Store struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	snapshots  Snapshotter
	codeLength int
	intn       func(int) int
}

// NewStore builds a store and loads the latest snapshot. A missing or unreadable
// snapshot starts the store empty; the failure is logged, not returned.
func NewStore(ctx context.Context, snapshots Snapshotter, opts Options) *Store {
	s := &Store{
		rooms:      make(map[string]*Room),
		snapshots:  snapshots,
		codeLength: opts.CodeLength,
		intn:       opts.Intn,
	}
	if s.codeLength <= 0 {
		s.codeLength = DefaultCodeLength
	}
	if s.intn == nil {
		s.intn = rand.Intn
	}
	if snapshots == nil {
		return s
	}
	snap, err := snapshots.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not load room snapshot, starting empty")
		return s
	}
	for code, room := range snap {
		msgs := room.Messages
		if msgs == nil {
			msgs = []Message{}
		}
		members := room.MemberCount
		if members < 0 {
			members = 0
		}
		s.rooms[code] = &Room{MemberCount: members, Messages: msgs}
	}
	log.Info().Int("rooms", len(s.rooms)).Msg("room snapshot loaded")
	return s
}

// CreateRoom inserts an empty room under a fresh code and persists it. On a
// storage failure the room still exists in memory and the code is returned
// alongside the error.
func (s *Store) CreateRoom(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := GenerateCode(s.codeLength, func(c string) bool {
		_, ok := s.rooms[c]
		return ok
	}, s.intn)
	s.rooms[code] = &Room{Messages: []Message{}}
	return code, s.persistLocked(ctx)
}

// Exists reports whether code names a known room.
func (s *Store) Exists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[code]
	return ok
}

// Append adds msg to the room's history and persists before returning.
func (s *Store) Append(ctx context.Context, code string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return fmt.Errorf("append to %q: %w", code, ErrRoomNotFound)
	}
	room.Messages = append(room.Messages, msg)
	return s.persistLocked(ctx)
}

// AdjustMembers applies delta to the member count, clamping at zero, and
// persists. An unknown code is a silent no-op.
func (s *Store) AdjustMembers(ctx context.Context, code string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return 0, nil
	}
	room.MemberCount += delta
	if room.MemberCount < 0 {
		room.MemberCount = 0
	}
	return room.MemberCount, s.persistLocked(ctx)
}

// Room returns a copy of one room's state.
func (s *Store) Room(code string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return Room{}, false
	}
	return copyRoom(room), true
}

// Snapshot returns a deep copy of the whole table.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.rooms))
	for code, room := range s.rooms {
		snap[code] = copyRoom(room)
	}
	return snap
}

// Len returns the number of known rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	// Messages are immutable and the lock is held for the whole write, so the
	// slices can be shared with the snapshot rather than copied.
	snap := make(Snapshot, len(s.rooms))
	for code, room := range s.rooms {
		snap[code] = *room
	}
	// a dropped request must not abort a write the caller already committed to
	if err := s.snapshots.Save(context.WithoutCancel(ctx), snap); err != nil {
		log.Error().Err(err).Msg("room snapshot write failed")
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func copyRoom(room *Room) Room {
	msgs := make([]Message, len(room.Messages))
	copy(msgs, room.Messages)
	return Room{MemberCount: room.MemberCount, Messages: msgs}
}
