package recordstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte

	// Saves counts Save calls, letting tests assert persistence behavior.
	Saves int
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Seed sets a record directly, bypassing the Save counter.
func (s *MemoryStore) Seed(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = append([]byte(nil), data...)
}

func (s *MemoryStore) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Save(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = append([]byte(nil), data...)
	s.Saves++
	return nil
}

func (s *MemoryStore) Close() error { return nil }
