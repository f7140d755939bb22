// Package ratelimit enforces sliding-window request budgets on login
// attempts, payment submissions, tutor chat and the operator console.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// keyPrefix namespaces the Redis sorted sets shared by RedisLimiter and Cleaner.
const keyPrefix = "academy:ratelimit:"

var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limiter checks and records one request against a budget of limit per
// window. A rejected request returns ErrLimitExceeded along with the result.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest request in the window leaves it.
	ResetAt time.Time
}

// RetryAfter is how long a rejected client should wait, at least a second.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r == nil {
		return time.Second
	}
	wait := r.ResetAt.Sub(now).Round(time.Second)
	if wait < time.Second {
		return time.Second
	}
	return wait
}

// Key scopes a client to a route budget.
func Key(route, client string) string {
	return route + ":" + client
}

func verdict(result *Result) (*Result, error) {
	if !result.Allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
