package state

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner drops conversations left waiting longer than ttl. Redis expires its
// keys on its own; the cleaner covers storages without expiry.
type Cleaner struct {
	storage  Storage
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewCleaner(storage Storage, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		storage:  storage,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep clears expired conversations once and returns how many were removed.
func (c *Cleaner) Sweep(ctx context.Context) int {
	states, err := c.storage.GetAllStates(ctx)
	if err != nil {
		c.log.Error("state cleaner failed to list states", slog.Any("error", err))
		return 0
	}

	cleared := 0
	for _, st := range states {
		if st == nil || c.now().Sub(st.UpdatedAt) <= c.ttl {
			continue
		}

		if err := c.storage.ClearState(ctx, st.ChatID); err != nil {
			c.log.Error("state cleaner failed to clear state", slog.Int64("chat_id", st.ChatID), slog.Any("error", err))
			continue
		}
		cleared++
	}

	if cleared > 0 {
		c.log.Info("stale conversations cleared", slog.Int("count", cleared))
	}

	return cleared
}
