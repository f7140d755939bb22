package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps slots in process memory. It backs tests and the
// "memory" storage driver.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[Slot][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[Slot][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	return loadSnapshot(ctx, s)
}

func (s *MemoryStore) Save(ctx context.Context, slot Slot, value any) error {
	return saveSlot(ctx, s, slot, value)
}

func (s *MemoryStore) Delete(ctx context.Context, slot Slot) error {
	return deleteSlot(ctx, s, slot)
}

// Raw returns the stored bytes of slot, or nil.
func (s *MemoryStore) Raw(slot Slot) []byte {
	data, _ := s.read(context.Background(), slot)
	return data
}

func (s *MemoryStore) read(_ context.Context, slot Slot) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.slots[slot]
	if !ok {
		return nil, nil
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) write(_ context.Context, slot Slot, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[slot] = data
	return nil
}

func (s *MemoryStore) remove(_ context.Context, slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, slot)
	return nil
}
