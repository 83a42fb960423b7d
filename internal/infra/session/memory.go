// Package session implements port.SessionStore: the per-conversation
// record that backs up the NLU contexts.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/cache"
)

// MemoryStore keeps session state in a TTL cache. Update holds a store
// lock, so read-modify-write is atomic within the process.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.InMemory[domain.SessionState]
	now   func() time.Time
}

// NewMemoryStore creates a store whose entries expire after ttl without
// an update.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New[domain.SessionState](ttl),
		now:   time.Now,
	}
}

// Close stops the cache janitor.
func (s *MemoryStore) Close() { s.cache.Close() }

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(sessionID), nil
}

func (s *MemoryStore) Save(_ context.Context, state *domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(state)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(sessionID)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, sessionID string, fn func(*domain.SessionState) error) (*domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.loadLocked(sessionID)
	if err := fn(state); err != nil {
		return nil, err
	}
	s.saveLocked(state)
	return state, nil
}

func (s *MemoryStore) loadLocked(sessionID string) *domain.SessionState {
	state, ok := s.cache.Get(sessionID)
	if !ok {
		return &domain.SessionState{SessionID: sessionID}
	}
	if state.SelectedProduct != nil {
		snap := *state.SelectedProduct
		state.SelectedProduct = &snap
	}
	return &state
}

func (s *MemoryStore) saveLocked(state *domain.SessionState) {
	state.UpdatedAt = s.now().UTC()
	s.cache.Set(state.SessionID, *state)
}
