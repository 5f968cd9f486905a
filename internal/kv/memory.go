package kv

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	count     int64
	expiresAt time.Time // zero means no expiry
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a process-local Store used in tests and as a single-node
// fallback when no Redis is configured. It is safe for concurrent use but
// obviously does not share state across instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry), now: time.Now}
}

// SetClock overrides the store's clock; tests use it to step past windows.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) live(key string) *memEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) IncrWindow(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &memEntry{expiresAt: s.now().Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (s *MemoryStore) GetCount(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key); e != nil {
		return e.count, nil
	}
	return 0, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key); e != nil {
		return e.value, nil
	}
	return "", ErrNotFound
}

func (s *MemoryStore) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key) != nil, nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
