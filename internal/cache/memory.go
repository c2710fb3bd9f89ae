package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	entry      Entry
	expiration time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and
// tests. Expired items are dropped lazily on read.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return Entry{}, false, nil
	}
	if time.Now().After(item.expiration) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	return item.entry, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	s.mu.Lock()
	s.items[key] = memoryItem{entry: entry, expiration: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}
