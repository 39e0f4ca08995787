package accounts

import (
	"context"
	"sync"
)

// MemoryStore keeps bindings in process memory
type MemoryStore struct {
	mu      sync.Mutex
	records map[Hash]Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Hash]Record)}
}

// Create implements Store
func (s *MemoryStore) Create(_ context.Context, rec Record) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.Salt]; ok {
		return existing, false, nil
	}
	s.records[rec.Salt] = rec
	return rec, true, nil
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, salt Hash) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[salt]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Ping implements Store
func (s *MemoryStore) Ping(context.Context) error { return nil }
