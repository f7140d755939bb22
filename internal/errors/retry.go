package errors

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy retries operations that fail with a retryable AppError.
// Jitter in [0, 1] spreads each wait by up to that fraction.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	Multiplier:     2,
	Jitter:         0.2,
}

// WithRetry runs fn under DefaultRetryPolicy.
func WithRetry(ctx context.Context, fn func() error) error {
	return DefaultRetryPolicy.Do(ctx, fn)
}

// Do runs fn up to MaxRetries+1 times. It stops at the first success, the
// first non-retryable error, or when ctx ends.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}

		timer := time.NewTimer(p.wait(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Retryable
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt)))
	return min(delay, p.MaxBackoff)
}

func (p RetryPolicy) wait(attempt int) time.Duration {
	d := p.backoff(attempt)
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * min(p.Jitter, 1)
	return d - time.Duration(spread) + time.Duration(rand.Float64()*2*spread)
}
