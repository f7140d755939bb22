package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cleaner deletes records that lost their expiry or carry one longer than
// maxTTL, e.g. written by an older release with a longer submission window.
type Cleaner struct {
	client   *redis.Client
	log      *slog.Logger
	interval time.Duration
	maxTTL   time.Duration
}

func NewCleaner(client *redis.Client, log *slog.Logger, interval, maxTTL time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		log:      log,
		interval: interval,
		maxTTL:   maxTTL,
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.client == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(ctx); n > 0 {
				c.log.Info("stale idempotency records removed", slog.Int("count", n))
			}
		}
	}
}

// Sweep runs one pass and returns how many records it deleted. Locks expire
// on their own and are not scanned.
func (c *Cleaner) Sweep(ctx context.Context) int {
	deleted := 0

	iter := c.client.Scan(ctx, 0, recordPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		ttl, err := c.client.TTL(ctx, key).Result()
		if err != nil {
			c.log.Warn("idempotency ttl lookup failed", slog.String("key", key), slog.Any("error", err))
			continue
		}
		if ttl >= 0 && ttl <= c.maxTTL {
			continue
		}

		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.log.Warn("idempotency record delete failed", slog.String("key", key), slog.Any("error", err))
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		c.log.Error("idempotency scan failed", slog.Any("error", err))
	}

	return deleted
}
