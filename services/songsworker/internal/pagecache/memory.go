package pagecache

import (
	"context"
	"sync"
)

// MemoryStore keeps pages in process memory. Used in tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	pages map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pages: map[string][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), page...), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, page []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[key] = append([]byte(nil), page...)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

func (s *MemoryStore) Close() error { return nil }
