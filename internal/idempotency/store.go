package idempotency

import (
	"context"
	"encoding/json"
	"time"
)

// Record is a completed operation: the JSON encoding of its value and when
// it was stored.
type Record struct {
	Response json.RawMessage `json:"response"`
	StoredAt time.Time       `json:"storedAt"`
}

// Store keeps records and guards execution with a short-lived lock. Get
// returns nil, nil for an unknown key.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
