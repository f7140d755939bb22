package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cleanerScanCount = 100

// Cleaner trims request logs older than maxWindow and deletes emptied keys,
// for keys whose expiry was lost or whose window shrank after a config change.
type Cleaner struct {
	client    *redis.Client
	log       *slog.Logger
	interval  time.Duration
	maxWindow time.Duration
}

func NewCleaner(client *redis.Client, log *slog.Logger, interval, maxWindow time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:    client,
		log:       log,
		interval:  interval,
		maxWindow: maxWindow,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.client == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped")
			return
		case <-ticker.C:
			if n := c.Sweep(ctx); n > 0 {
				c.log.Info("rate limit keys cleaned", slog.Int("keys_removed", n))
			}
		}
	}
}

// Sweep runs one pass and returns how many keys were removed.
func (c *Cleaner) Sweep(ctx context.Context) int {
	cutoff := "(" + score(time.Now().Add(-c.maxWindow))
	removed := 0

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", cleanerScanCount).Iterator()
	for iter.Next(ctx) {
		if c.trim(ctx, iter.Val(), cutoff) {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Error("rate limit scan failed", slog.Any("error", err))
	}

	return removed
}

// trim drops expired entries of key and reports whether the key is gone.
func (c *Cleaner) trim(ctx context.Context, key, cutoff string) bool {
	var card *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		card = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		c.log.Warn("rate limit trim failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if card.Val() > 0 {
		return false
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("rate limit key delete failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}
