package sessioncache

import (
	"context"
	"sync"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/components/chrono"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type MemoryStore struct {
	clock   chrono.API
	mutex   sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore(clock chrono.API) *MemoryStore {
	return &MemoryStore{
		clock:   chrono.OrDefault(clock),
		entries: map[string]memoryEntry{},
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}

	s.mutex.Lock()
	s.entries[key] = entry
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	delete(s.entries, key)
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
