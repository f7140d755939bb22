package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// MemoryStore is the single-process Store used with the memory storage
// driver. Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	locks   map[string]time.Time
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{
		records: make(map[string]memoryEntry),
		locks:   make(map[string]time.Time),
		now:     now,
	}
}

func (s *MemoryStore) Lock(_ context.Context, key string, lockTTL time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if until, ok := s.locks[key]; ok && s.now().Before(until) {
		return false, nil
	}
	s.locks[key] = s.now().Add(lockTTL)
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.records, key)
		return nil, nil
	}

	rec := entry.record
	return &rec, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, record *Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{record: *record}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.records[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, key)
	return nil
}
