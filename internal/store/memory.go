package store

import (
	"context"

	"github.com/cardioml-web/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps assessment state in a bounded, expiring in-process LRU.
// Records are held serialized so callers never share mutable state.
type MemoryStore struct {
	cache *expirable.LRU[string, encoded]
}

// NewMemoryStore creates a store holding at most cfg.MaxSessions scopes, each for
// cfg.TTL (zero keeps entries until evicted).
func NewMemoryStore(cfg domain.StoreConfig) *MemoryStore {
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 10000
	}
	return &MemoryStore{cache: expirable.NewLRU[string, encoded](maxSessions, nil, cfg.TTL)}
}

// Save replaces the scope's stored pair.
func (s *MemoryStore) Save(_ context.Context, scope string, record *domain.AssessmentRecord) error {
	e, err := encode(record)
	if err != nil {
		return err
	}
	s.cache.Add(scope, e)
	return nil
}

// Load returns the scope's stored pair.
func (s *MemoryStore) Load(_ context.Context, scope string) (*domain.AssessmentRecord, bool, error) {
	e, ok := s.cache.Get(scope)
	if !ok {
		return nil, false, nil
	}
	record, err := decode(e)
	if err != nil {
		s.cache.Remove(scope)
		return nil, false, nil
	}
	return record, true, nil
}

// Clear removes the scope's stored pair.
func (s *MemoryStore) Clear(_ context.Context, scope string) error {
	s.cache.Remove(scope)
	return nil
}

// Len reports how many scopes are stored.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close releases nothing; it exists to satisfy domain.ResultStore.
func (s *MemoryStore) Close() error {
	return nil
}
