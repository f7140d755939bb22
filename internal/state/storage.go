// Package state keeps the operator console's conversation state per chat.
package state

import (
	"context"
	"sync"
	"time"
)

// Storage defines the persistence contract for conversation state.
type Storage interface {
	GetState(ctx context.Context, chatID int64) (*UserState, error)
	SetState(ctx context.Context, chatID int64, state *UserState) error
	ClearState(ctx context.Context, chatID int64) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

// MemoryStorage keeps states in process memory. Expiry is left to Cleaner.
type MemoryStorage struct {
	mu     sync.Mutex
	states map[int64]UserState
	now    func() time.Time
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage(now func() time.Time) *MemoryStorage {
	if now == nil {
		now = time.Now
	}
	return &MemoryStorage{
		states: make(map[int64]UserState),
		now:    now,
	}
}

func (s *MemoryStorage) GetState(_ context.Context, chatID int64) (*UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[chatID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return &st, nil
}

func (s *MemoryStorage) SetState(_ context.Context, chatID int64, state *UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = s.now().UTC()
	s.states[chatID] = *state
	return nil
}

func (s *MemoryStorage) ClearState(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, chatID)
	return nil
}

func (s *MemoryStorage) GetAllStates(_ context.Context) ([]*UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*UserState, 0, len(s.states))
	for _, st := range s.states {
		copied := st
		out = append(out, &copied)
	}
	return out, nil
}
