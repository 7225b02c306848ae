package store

import (
	"context"
	"sync"

	"github.com/volbet/settlement-engine/internal/model"
)

// MemoryStore implements Store with an in-memory slice. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	events []model.Event
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}
