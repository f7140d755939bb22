package ratelimit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// MemoryLimiter is the in-process Limiter used without Redis and as the
// fallback of AdaptiveLimiter. Rejected requests are not recorded.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	log     *slog.Logger
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	return NewMemoryLimiterWithClock(log, time.Now)
}

func NewMemoryLimiterWithClock(log *slog.Logger, now func() time.Time) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}

	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		log:     log,
		now:     now,
	}
}

func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	reqs := dropBefore(m.windows[key], now.Add(-window))
	allowed := len(reqs) < limit
	if allowed {
		reqs = append(reqs, now)
	}
	m.windows[key] = reqs

	resetAt := now.Add(window)
	if len(reqs) > 0 {
		resetAt = reqs[0].Add(window)
	}

	return verdict(&Result{
		Allowed:   allowed,
		Remaining: remaining(limit, len(reqs)),
		ResetAt:   resetAt,
	})
}

// Cleanup forgets keys without a request in the last maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, reqs := range m.windows {
		if len(reqs) == 0 || reqs[len(reqs)-1].Before(cutoff) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is cancelled.
func (m *MemoryLimiter) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(maxAge); n > 0 {
				m.log.Debug("rate limit windows dropped", slog.Int("keys", n))
			}
		}
	}
}

// dropBefore removes the sorted prefix of reqs older than start, in place.
func dropBefore(reqs []time.Time, start time.Time) []time.Time {
	i := slices.IndexFunc(reqs, func(t time.Time) bool { return !t.Before(start) })
	if i < 0 {
		return reqs[:0]
	}
	return slices.Delete(reqs, 0, i)
}
