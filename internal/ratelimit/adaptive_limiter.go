package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrDegraded is reported by the health check while Redis is unavailable
// and budgets are enforced per process.
var ErrDegraded = errors.New("rate limiting degraded to in-memory fallback")

var (
	checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_ratelimit_checks_total",
		Help: "Rate limit checks by backend and outcome.",
	}, []string{"backend", "result"})

	degradedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "academy_ratelimit_degraded",
		Help: "1 while rate limiting runs on the in-memory fallback.",
	})
)

func init() {
	prometheus.MustRegister(checksTotal, degradedGauge)
}

// AdaptiveLimiter checks against the shared Redis budget and, while Redis
// fails, against an in-process limiter at half the budget. Several replicas
// on the fallback together stay close to the configured limit.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
	degraded atomic.Bool
}

func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		if a.degraded.CompareAndSwap(true, false) {
			degradedGauge.Set(0)
			a.log.Info("rate limiting back on redis")
		}
		checksTotal.WithLabelValues("redis", outcome(err)).Inc()
		return result, err
	}

	if a.degraded.CompareAndSwap(false, true) {
		degradedGauge.Set(1)
		a.log.Warn("rate limiting degraded to in-memory", slog.String("key", key), slog.Any("error", err))
	}

	result, err = a.fallback.Check(ctx, key, max(limit/2, 1), window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return nil, err
	}
	checksTotal.WithLabelValues("fallback", outcome(err)).Inc()
	return result, err
}

// HealthCheck fails with ErrDegraded while the fallback is in use.
func (a *AdaptiveLimiter) HealthCheck(context.Context) error {
	if a.degraded.Load() {
		return ErrDegraded
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "rejected"
	}
	return "allowed"
}
