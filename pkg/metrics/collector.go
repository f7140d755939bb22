// Package metrics exposes the academy's Prometheus instrumentation.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/sawti-academy/internal/payment"
	"github.com/Proton-105/sawti-academy/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_bot_commands_total",
			Help: "Total number of operator console commands labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "academy_bot_command_duration_seconds",
			Help:    "Duration of operator console commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_operator_state_transitions_total",
			Help: "Total number of operator conversation state transitions",
		},
		[]string{"from", "to"},
	)
	paymentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_payment_transitions_total",
			Help: "Total number of payment request status transitions",
		},
		[]string{"from", "to"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_notifications_total",
			Help: "Total number of notifications appended to the ledger by type",
		},
		[]string{"type"},
	)
	entitlementChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_entitlement_checks_total",
			Help: "Total number of entitlement evaluations by kind and outcome",
		},
		[]string{"kind", "active"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"type", "severity"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_http_requests_total",
			Help: "Total number of HTTP requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "academy_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	pendingPayments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "academy_pending_payments",
			Help: "Payment requests awaiting reconciliation",
		},
	)
	confirmedRevenue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "academy_confirmed_revenue_iqd",
			Help: "Sum of confirmed payment amounts in IQD",
		},
	)
	lessonsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "academy_lessons",
			Help: "Lessons in the catalog",
		},
	)
	unreadNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "academy_unread_notifications",
			Help: "Unread notifications across all users",
		},
	)
)

func init() {
	payment.RegisterTransitionRecorder(RecordPaymentTransition)
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	command = orUnknown(command)
	status = orUnknown(status)

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks operator FSM transitions.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

func RecordPaymentTransition(from, to string) {
	paymentTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

func RecordNotification(notificationType string) {
	notificationsTotal.WithLabelValues(orUnknown(notificationType)).Inc()
}

func RecordEntitlementCheck(kind string, active bool) {
	entitlementChecksTotal.WithLabelValues(orUnknown(kind), strconv.FormatBool(active)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	route = orUnknown(route)

	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// Gauges is a point-in-time view of the academy used for gauge metrics.
type Gauges struct {
	PendingPayments     int
	ConfirmedRevenueIQD int64
	Lessons             int
	UnreadNotifications int
}

// GaugeSource provides the values published by AcademyCollector.
type GaugeSource interface {
	Gauges() Gauges
}

// AcademyCollector periodically publishes academy gauges.
type AcademyCollector struct {
	source   GaugeSource
	interval time.Duration
}

func NewAcademyCollector(source GaugeSource, interval time.Duration) *AcademyCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &AcademyCollector{source: source, interval: interval}
}

// Run publishes gauges every interval until ctx is cancelled.
func (c *AcademyCollector) Run(ctx context.Context) {
	if c == nil || c.source == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		c.collect()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *AcademyCollector) collect() {
	g := c.source.Gauges()

	pendingPayments.Set(float64(g.PendingPayments))
	confirmedRevenue.Set(float64(g.ConfirmedRevenueIQD))
	lessonsTotal.Set(float64(g.Lessons))
	unreadNotifications.Set(float64(g.UnreadNotifications))
}
