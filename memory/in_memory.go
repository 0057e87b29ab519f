package memory

import (
	"sync"

	"github.com/quorum-ai/quorum/core"
)

// InMemoryStorage is a volatile core.Storage keeping records in a process
// local map. It is safe for concurrent access and best suited for tests or
// ephemeral demo setups. Stored records are copied on the way in and out to
// prevent external mutation of internal state.
type InMemoryStorage struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewInMemoryStorage constructs an empty in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{records: make(map[string][]byte)}
}

// Store saves a copy of the record under key, overwriting any previous value.
func (s *InMemoryStorage) Store(key string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(record))
	copy(cp, record)
	s.records[key] = cp
	return nil
}

// Fetch returns a copy of the record stored under key.
func (s *InMemoryStorage) Fetch(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, core.ErrRecordNotFound
	}
	cp := make([]byte, len(rec))
	copy(cp, rec)
	return cp, nil
}

// Purge removes the record stored under key. Purging a missing key is a
// no-op.
func (s *InMemoryStorage) Purge(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Len returns the number of stored records.
func (s *InMemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns all stored keys in unspecified order.
func (s *InMemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}
