package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps one sorted set per key, scored by request time in
// milliseconds. Every check is recorded, rejected ones included, so a client
// hammering a route stays blocked.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("rate limit: redis client not configured")
	}

	now := l.now()
	if limit <= 0 {
		return verdict(&Result{ResetAt: now.Add(window)})
	}

	setKey := keyPrefix + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", "("+score(now.Add(-window)))
	pipe.ZAdd(ctx, setKey, redis.Z{Score: millis(now), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, setKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, setKey, 0, 0)
	pipe.Expire(ctx, setKey, 2*window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limit pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := int(countCmd.Val())
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) == 1 {
		resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window)
	}

	return verdict(&Result{
		Allowed:   count <= limit,
		Remaining: remaining(limit, count),
		ResetAt:   resetAt,
	})
}

func millis(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}

func score(t time.Time) string {
	return fmt.Sprintf("%f", millis(t))
}
