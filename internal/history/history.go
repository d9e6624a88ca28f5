/*
Package history stores per-room message history for the room server.

The hub appends every accepted chat message and replays the most recent slice
of a room's history to each joining user. Two implementations exist: an
in-memory store used by default and in tests, and a Postgres-backed store for
deployments that keep history across restarts.
*/
package history

import (
	"context"
	"sync"

	"collabchat/internal/protocol"
)

// ReplayLimit is the number of backlog messages replayed on room join.
const ReplayLimit = 50

// Store persists room message history.
type Store interface {
	// Append records one message in roomID's history.
	Append(ctx context.Context, roomID string, msg protocol.Message) error

	// Recent returns up to limit of roomID's newest messages, oldest first.
	Recent(ctx context.Context, roomID string, limit int) ([]protocol.Message, error)
}

// MemoryStore keeps history in process memory. History is lost on restart,
// matching a server run without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]protocol.Message
}

// NewMemoryStore returns an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]protocol.Message),
	}
}

// Append records one message in roomID's history.
func (s *MemoryStore) Append(ctx context.Context, roomID string, msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[roomID] = append(s.messages[roomID], msg)
	return nil
}

// Recent returns up to limit of roomID's newest messages, oldest first.
func (s *MemoryStore) Recent(ctx context.Context, roomID string, limit int) ([]protocol.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[roomID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]protocol.Message, len(all))
	copy(out, all)
	return out, nil
}
