package storage

import (
	"fmt"
	"sync"
)

var _ FileStore = (*MemStore)(nil)

// MemStore is an in-memory FileStore for tests and ephemeral deployments.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte

	// FailWrites, when set, makes every Write return this error. Used by
	// tests exercising I/O failure propagation.
	FailWrites error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

func (s *MemStore) Read(uri string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[uri]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", uri, ErrNotExist)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemStore) Write(uri string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return fmt.Errorf("write %s: %w", uri, s.FailWrites)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.files[uri] = stored
	return nil
}

func (s *MemStore) Delete(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[uri]; !ok {
		return fmt.Errorf("delete %s: %w", uri, ErrNotExist)
	}
	delete(s.files, uri)
	return nil
}

func (s *MemStore) Exists(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[uri]
	return ok
}
