// Package idempotency runs an operation at most once per key and replays the
// stored result to later callers with the same key.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const lockTTL = 5 * time.Minute

var ErrRequestInProgress = errors.New("request with this key is already in progress")

type Operation func(ctx context.Context) (any, error)

// Result is the JSON encoding of the operation's value. FromCache marks a
// replay of an earlier execution.
type Result struct {
	Response  json.RawMessage
	FromCache bool
}

type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	return &manager{store: store, now: time.Now, log: log}
}

// Execute replays a completed record, or runs fn while holding the key's
// lock. A caller that loses the lock gets ErrRequestInProgress unless the
// holder finished in the meantime. Failed operations leave no record, so
// the same key may be retried.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("idempotency: nil operation")
	}

	if res, err := m.replay(ctx, key); res != nil || err != nil {
		return res, err
	}

	locked, err := m.store.Lock(ctx, key, lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		if res, err := m.replay(ctx, key); res != nil || err != nil {
			return res, err
		}
		return nil, ErrRequestInProgress
	}

	return m.run(ctx, key, ttl, fn)
}

func (m *manager) replay(ctx context.Context, key string) (*Result, error) {
	record, err := m.store.Get(ctx, key)
	if err != nil || record == nil {
		return nil, err
	}
	m.log.Debug("idempotent replay", slog.String("key", key), slog.Time("stored_at", record.StoredAt))
	return &Result{Response: record.Response, FromCache: true}, nil
}

func (m *manager) run(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	defer func() {
		// The lock must go even when the request was cancelled.
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	response, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode idempotent response: %w", err)
	}

	record := &Record{Response: response, StoredAt: m.now().UTC()}
	if err := m.store.Set(ctx, key, record, ttl); err != nil {
		return nil, err
	}
	return &Result{Response: response}, nil
}
