package redis

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	redisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_redis_requests_total",
			Help: "Total number of Redis requests by method.",
		},
		[]string{"method"},
	)
	redisErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_redis_errors_total",
			Help: "Total number of Redis errors by method. Missing keys are not errors.",
		},
		[]string{"method"},
	)
	redisRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "academy_redis_request_duration_seconds",
			Help:    "Redis request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// MetricsClient decorates a KV with Prometheus instrumentation.
type MetricsClient struct {
	next KV
}

func NewMetricsClient(next KV) *MetricsClient {
	return &MetricsClient{next: next}
}

func (m *MetricsClient) Get(ctx context.Context, key string) (string, error) {
	var result string
	err := m.observe("get", func() error {
		var err error
		result, err = m.next.Get(ctx, key)
		return err
	})
	return result, err
}

func (m *MetricsClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return m.observe("set", func() error {
		return m.next.Set(ctx, key, value, ttl)
	})
}

func (m *MetricsClient) Delete(ctx context.Context, key string) error {
	return m.observe("delete", func() error {
		return m.next.Delete(ctx, key)
	})
}

func (m *MetricsClient) observe(method string, fn func() error) error {
	timer := prometheus.NewTimer(redisRequestDuration.WithLabelValues(method))
	err := fn()
	timer.ObserveDuration()

	redisRequestsTotal.WithLabelValues(method).Inc()
	if err != nil && !errors.Is(err, Nil) {
		redisErrorsTotal.WithLabelValues(method).Inc()
	}
	return err
}
