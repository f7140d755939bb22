package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_KVRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(ctx, "academy:slot:session", `{"id":"u-1"}`, time.Minute))
	got, err := client.Get(ctx, "academy:slot:session")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u-1"}`, got)
	assert.Equal(t, time.Minute, mr.TTL("academy:slot:session"))

	require.NoError(t, client.Delete(ctx, "academy:slot:session"))
	_, err = client.Get(ctx, "academy:slot:session")
	assert.ErrorIs(t, err, Nil)
}

func TestNew_GivesUpAfterAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Addr: addr, ConnectAttempts: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestNew_StopsWaitingWhenCanceled(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(ctx, Config{Addr: addr, ConnectAttempts: 10})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConfig_AsynqOpt(t *testing.T) {
	opt := Config{Addr: "cache:6379", Password: "secret", DB: 2, PoolSize: 8}.AsynqOpt()

	assert.Equal(t, "cache:6379", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 8, opt.PoolSize)
}
