package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sawti-academy/pkg/config"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRedisLimiter_AllowsThenBlocks(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, Key(RouteLogin, "0770"), 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i)
	}

	result, err := limiter.Check(ctx, Key(RouteLogin, "0770"), 2, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	clk := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := &RedisLimiter{client: client, log: testLogger(), now: clk.Now}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "chat:u1", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	clk.Advance(400 * time.Millisecond)
	result, err := limiter.Check(ctx, "chat:u1", 2, time.Second)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 600*time.Millisecond, result.ResetAt.Sub(clk.now), "reset follows the oldest request")

	clk.Advance(1100 * time.Millisecond)

	result, err = limiter.Check(ctx, "chat:u1", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_ZeroLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())

	result, err := limiter.Check(context.Background(), "submit:x", 0, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
}

func TestMemoryLimiter(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewMemoryLimiterWithClock(testLogger(), clk.Now)
	ctx := context.Background()

	first, err := limiter.Check(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Remaining)
	assert.Equal(t, clk.now.Add(time.Minute), first.ResetAt)

	clk.Advance(10 * time.Second)
	_, err = limiter.Check(ctx, "k", 2, time.Minute)
	require.NoError(t, err)

	blocked, err := limiter.Check(ctx, "k", 2, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, blocked.Allowed)

	clk.Advance(51 * time.Second)
	again, err := limiter.Check(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, again.Allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewMemoryLimiterWithClock(testLogger(), clk.Now)

	_, err := limiter.Check(context.Background(), "old", 5, time.Minute)
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)
	_, err = limiter.Check(context.Background(), "fresh", 5, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, limiter.Cleanup(5*time.Minute))

	assert.NotContains(t, limiter.windows, "old")
	assert.Contains(t, limiter.windows, "fresh")
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("connection refused")
}

func TestAdaptiveLimiter_FallsBackAtHalfBudget(t *testing.T) {
	limiter := NewAdaptiveLimiter(failingLimiter{}, NewMemoryLimiter(testLogger()), testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "k", 4, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	_, err := limiter.Check(ctx, "k", 4, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.ErrorIs(t, limiter.HealthCheck(ctx), ErrDegraded)
}

type flakyLimiter struct {
	fail bool
	next Limiter
}

func (f *flakyLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.next.Check(ctx, key, limit, window)
}

func TestAdaptiveLimiter_RecoversWhenPrimaryReturns(t *testing.T) {
	primary := &flakyLimiter{fail: true, next: NewMemoryLimiter(testLogger())}
	limiter := NewAdaptiveLimiter(primary, NewMemoryLimiter(testLogger()), testLogger())
	ctx := context.Background()

	_, err := limiter.Check(ctx, "k", 10, time.Minute)
	require.NoError(t, err)
	require.ErrorIs(t, limiter.HealthCheck(ctx), ErrDegraded)

	primary.fail = false
	_, err = limiter.Check(ctx, "k", 10, time.Minute)
	require.NoError(t, err)
	assert.NoError(t, limiter.HealthCheck(ctx))
}

func TestResult_RetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		result *Result
		want   time.Duration
	}{
		{name: "nil result", result: nil, want: time.Second},
		{name: "already reset", result: &Result{ResetAt: now.Add(-time.Second)}, want: time.Second},
		{name: "rounded", result: &Result{ResetAt: now.Add(41600 * time.Millisecond)}, want: 42 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.RetryAfter(now))
		})
	}
}

func TestAdaptiveLimiter_PrimaryRejects(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewAdaptiveLimiter(NewRedisLimiter(client, testLogger()), NewMemoryLimiter(testLogger()), testLogger())
	ctx := context.Background()

	_, err := limiter.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)

	result, err := limiter.Check(ctx, "k", 1, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
}

func TestCleaner_Sweep(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	stale := float64(time.Now().Add(-time.Hour).UnixNano()) / float64(time.Millisecond)
	fresh := float64(time.Now().UnixNano()) / float64(time.Millisecond)
	require.NoError(t, client.ZAdd(ctx, keyPrefix+"stale", redis.Z{Score: stale, Member: "a"}).Err())
	require.NoError(t, client.ZAdd(ctx, keyPrefix+"fresh", redis.Z{Score: fresh, Member: "b"}).Err())

	cleaner := NewCleaner(client, testLogger(), time.Minute, 10*time.Minute)
	assert.Equal(t, 1, cleaner.Sweep(ctx))

	exists, err := client.Exists(ctx, keyPrefix+"stale", keyPrefix+"fresh").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		Whitelist: []string{"127.0.0.1"},
		Global:    config.RateLimitRule{Limit: 100, Window: "1m"},
		Routes: config.RouteLimits{
			Login:    config.RateLimitRule{Limit: 5, Window: "1m"},
			Submit:   config.RateLimitRule{Limit: 3, Window: "10m"},
			Chat:     config.RateLimitRule{Limit: 0, Window: "1m"},
			Operator: config.RateLimitRule{Limit: 30, Window: "bogus"},
		},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted("127.0.0.1"))
	assert.False(t, rules.IsWhitelisted("10.0.0.1"))

	tests := []struct {
		route   string
		limit   int
		window  time.Duration
		wantErr bool
	}{
		{route: RouteLogin, limit: 5, window: time.Minute},
		{route: RouteSubmit, limit: 3, window: 10 * time.Minute},
		{route: RouteChat, wantErr: true},
		{route: RouteOperator, wantErr: true},
		{route: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			limit, window, err := rules.RouteLimit(tt.route)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.window, window)
		})
	}

	limit, window, err := rules.GlobalLimit()
	require.NoError(t, err)
	assert.Equal(t, 100, limit)
	assert.Equal(t, time.Minute, window)

	var nilRules *Rules
	assert.False(t, nilRules.Enabled())
}
