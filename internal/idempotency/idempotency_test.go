package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_ReplaysCompletedResult(t *testing.T) {
	_, client := setup(t)
	mgr := NewManager(NewRedisStore(client, quietLog()), quietLog())
	ctx := context.Background()
	key := Key("payment", "user-1", "TX-1")

	calls := 0
	op := func(context.Context) (any, error) {
		calls++
		return map[string]string{"id": "pay-1"}, nil
	}

	first, err := mgr.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.JSONEq(t, `{"id":"pay-1"}`, string(first.Response))

	second, err := mgr.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.JSONEq(t, `{"id":"pay-1"}`, string(second.Response))
	assert.Equal(t, 1, calls)
}

func TestManager_FailedOperationCanRetry(t *testing.T) {
	_, client := setup(t)
	mgr := NewManager(NewRedisStore(client, quietLog()), quietLog())
	ctx := context.Background()

	_, err := mgr.Execute(ctx, "k", time.Hour, func(context.Context) (any, error) {
		return nil, errors.New("storage down")
	})
	require.Error(t, err)

	res, err := mgr.Execute(ctx, "k", time.Hour, func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, `"ok"`, string(res.Response))
}

func TestManager_InProgress(t *testing.T) {
	_, client := setup(t)
	store := NewRedisStore(client, quietLog())
	ctx := context.Background()

	locked, err := store.Lock(ctx, "busy", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	called := false
	_, err = NewManager(store, quietLog()).Execute(ctx, "busy", time.Hour, func(context.Context) (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
	assert.False(t, called)
}

// racingStore reports a lost lock and lets the winner finish first.
type racingStore struct {
	Store
	finished *Record
	gets     int
}

func (s *racingStore) Lock(context.Context, string, time.Duration) (bool, error) { return false, nil }

func (s *racingStore) Get(context.Context, string) (*Record, error) {
	s.gets++
	if s.gets == 1 {
		return nil, nil
	}
	return s.finished, nil
}

func TestManager_LostLockReplaysWinner(t *testing.T) {
	store := &racingStore{finished: &Record{Response: []byte(`{"id":"pay-1"}`)}}

	res, err := NewManager(store, quietLog()).Execute(context.Background(), "k", time.Hour, func(context.Context) (any, error) {
		t.Fatal("operation must not run without the lock")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.JSONEq(t, `{"id":"pay-1"}`, string(res.Response))
}

func TestManager_ReleasesLockAfterCancel(t *testing.T) {
	mr, client := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := NewManager(NewRedisStore(client, quietLog()), quietLog()).Execute(ctx, "k", time.Hour, func(context.Context) (any, error) {
		cancel()
		return nil, context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, mr.Exists(lockPrefix+"k"))
	assert.False(t, mr.Exists(recordPrefix+"k"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("payment", "user-1", "TX-1"), Key("payment", "user-1", " TX-1 "))
	assert.NotEqual(t, Key("payment", "user-1", "TX-1"), Key("payment", "user-2", "TX-1"))
	assert.NotEqual(t, Key("payment", "ab", "c"), Key("payment", "a", "bc"))
	assert.NotEqual(t, Key("bot", "x"), Key("payment", "x"))

	key := Key("bot", "cb", 42)
	assert.True(t, strings.HasPrefix(key, "bot:"))
	assert.Len(t, key, len("bot:")+keyHashLen)
}

func TestCleaner_Sweep(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(recordPrefix+"no-ttl", `{"response":"ok"}`))
	require.NoError(t, mr.Set(recordPrefix+"too-long", `{"response":"ok"}`))
	mr.SetTTL(recordPrefix+"too-long", 48*time.Hour)
	require.NoError(t, mr.Set(recordPrefix+"fresh", `{"response":"ok"}`))
	mr.SetTTL(recordPrefix+"fresh", time.Hour)
	require.NoError(t, mr.Set(lockPrefix+"fresh", "token"))

	deleted := NewCleaner(client, quietLog(), time.Minute, 25*time.Hour).Sweep(ctx)
	assert.Equal(t, 2, deleted)
	assert.False(t, mr.Exists(recordPrefix+"no-ttl"))
	assert.False(t, mr.Exists(recordPrefix+"too-long"))
	assert.True(t, mr.Exists(recordPrefix+"fresh"))
	assert.True(t, mr.Exists(lockPrefix+"fresh"))
}

func TestRedisStore_LockOwnership(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()
	mine := NewRedisStore(client, quietLog())
	theirs := NewRedisStore(client, quietLog())

	ok, err := mine.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = theirs.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, theirs.ReleaseLock(ctx, "k"))
	assert.True(t, mr.Exists(lockPrefix+"k"), "another store cannot release the lock")

	require.NoError(t, mine.ReleaseLock(ctx, "k"))
	assert.False(t, mr.Exists(lockPrefix+"k"))
}

func TestRedisStore_CorruptRecordIsDropped(t *testing.T) {
	mr, client := setup(t)
	store := NewRedisStore(client, quietLog())
	require.NoError(t, mr.Set(recordPrefix+"k", "{not json"))

	record, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.False(t, mr.Exists(recordPrefix+"k"))
}

func TestMemoryStore(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	mgr := NewManager(store, quietLog())
	ctx := context.Background()

	calls := 0
	op := func(context.Context) (any, error) {
		calls++
		return "ok", nil
	}

	first, err := mgr.Execute(ctx, "k", time.Hour, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := mgr.Execute(ctx, "k", time.Hour, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.JSONEq(t, `"ok"`, string(second.Response))

	now = now.Add(2 * time.Hour)
	third, err := mgr.Execute(ctx, "k", time.Hour, op)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.Equal(t, 2, calls)

	locked, err := store.Lock(ctx, "busy", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)
	locked, err = store.Lock(ctx, "busy", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)
}
