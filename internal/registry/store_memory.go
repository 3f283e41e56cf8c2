package registry

import (
	"context"
	"sync"
)

// MemoryStore is the default backend: a mutex-guarded map with process
// lifetime. State is lost on restart; records are rehydratable from the
// voice provider by call identifier.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]CallRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]CallRecord)}
}

func (s *MemoryStore) Put(ctx context.Context, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.CallID] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, callID string) (CallRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[callID]
	return rec, ok, nil
}

func (s *MemoryStore) Update(ctx context.Context, callID string, fn func(*CallRecord) error) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[callID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	if err := fn(&rec); err != nil {
		return CallRecord{}, err
	}
	s.records[callID] = rec
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context) (map[string]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]CallRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out, nil
}
