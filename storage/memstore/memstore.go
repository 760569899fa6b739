// Package memstore is the session-scoped storage.Store tier: values live only
// as long as the process, mirroring a browser tab's sessionStorage.
package memstore

import (
	"sync"

	"github.com/creatoros/go-auth-client/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is a thread-safe in-memory key-value store.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// New returns an empty session-scoped store.
func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	// Copy so callers cannot mutate the stored record.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *Store) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[key] = stored
	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
