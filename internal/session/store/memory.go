package store

import (
	"context"
	"sync"
	"time"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
)

// MemoryStore is an in-memory Store implementation for single-instance
// deployments. Entries are copied on Put and Get so callers never share the
// cached struct.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]domain.Session
}

// NewMemoryStore returns a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]domain.Session)}
}

// Get returns the cached session, or (nil, nil) on miss.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[sessionID]
	if !ok {
		return nil, nil
	}
	cp := e
	return &cp, nil
}

// Put stores a copy of the session.
func (s *MemoryStore) Put(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = *sess
	return nil
}

// Delete removes the session from the cache. Deleting a missing entry is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionID)
	return nil
}

// ScanExpired returns IDs of entries past expiry or marked inactive.
func (s *MemoryStore) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, e := range s.m {
		if !e.IsActive || !e.ExpiresAt.After(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

// Len returns the number of cached entries. For tests and metrics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
