package webhook

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is an IdempotencyStore for single-instance deployments.
type InMemoryStore struct {
	mu      sync.Mutex
	pending map[string]struct{}
	used    map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryStore creates a store that forgets Used keys after ttl.
// A ttl of zero keeps them for the life of the process.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		pending: make(map[string]struct{}),
		used:    make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// CheckAndMark implements IdempotencyStore.
func (s *InMemoryStore) CheckAndMark(_ context.Context, key string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at, ok := s.used[key]; ok {
		if s.ttl == 0 || s.now().Sub(at) < s.ttl {
			return StateUsed, nil
		}
		// Expired - clean it up
		delete(s.used, key)
	}
	if _, ok := s.pending[key]; ok {
		return StatePending, nil
	}
	s.pending[key] = struct{}{}
	return StateAbsent, nil
}

// MarkUsed implements IdempotencyStore.
func (s *InMemoryStore) MarkUsed(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, key)
	s.used[key] = s.now()
	s.cleanupExpiredLocked()
	return nil
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemoryStore) cleanupExpiredLocked() {
	if s.ttl == 0 {
		return
	}
	now := s.now()
	for key, at := range s.used {
		if now.Sub(at) >= s.ttl {
			delete(s.used, key)
		}
	}
}

var _ IdempotencyStore = (*InMemoryStore)(nil)
