package errors

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker defaults, used when a BreakerConfig field is zero.
const (
	DefaultFailureRatio = 0.5
	DefaultMinRequests  = 10
	DefaultOpenFor      = 30 * time.Second
	DefaultProbes       = 3
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var (
	ErrCircuitOpen    = errors.New("circuit breaker is open")
	errProbesInUse    = errors.New("circuit breaker is probing")
	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "academy_circuit_state",
		Help: "Circuit breaker state per upstream: 0 closed, 1 open, 2 half open.",
	}, []string{"name"})
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a CircuitBreaker. The breaker opens once at least
// MinRequests calls were seen and FailureRatio of them failed, stays open
// for OpenFor, then lets Probes calls through. All probes must succeed to
// close it again; one failed probe reopens it.
type BreakerConfig struct {
	Name         string
	FailureRatio float64
	MinRequests  int
	OpenFor      time.Duration
	Probes       int
	Now          func() time.Time
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = DefaultFailureRatio
	}
	if c.MinRequests <= 0 {
		c.MinRequests = DefaultMinRequests
	}
	if c.OpenFor <= 0 {
		c.OpenFor = DefaultOpenFor
	}
	if c.Probes <= 0 {
		c.Probes = DefaultProbes
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// window counts outcomes since the last state change.
type window struct {
	calls    int
	failures int
	inFlight int
}

type CircuitBreaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	openedAt time.Time
	counts   window
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{cfg: cfg.withDefaults()}
	breakerStateGauge.WithLabelValues(cb.cfg.Name).Set(float64(StateClosed))
	return cb
}

// Call runs fn unless the breaker is open. The error from fn is returned
// unchanged.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.OpenFor {
			return ErrCircuitOpen
		}
		cb.moveTo(StateHalfOpen)
	}
	if cb.state == StateHalfOpen && cb.counts.calls+cb.counts.inFlight >= cb.cfg.Probes {
		return errProbesInUse
	}

	cb.counts.inFlight++
	return nil
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.inFlight = max(cb.counts.inFlight-1, 0)
	cb.counts.calls++
	if !ok {
		cb.counts.failures++
	}

	switch cb.state {
	case StateHalfOpen:
		if !ok {
			cb.moveTo(StateOpen)
		} else if cb.counts.calls >= cb.cfg.Probes {
			cb.moveTo(StateClosed)
		}
	case StateClosed:
		if cb.counts.calls >= cb.cfg.MinRequests &&
			float64(cb.counts.failures)/float64(cb.counts.calls) >= cb.cfg.FailureRatio {
			cb.moveTo(StateOpen)
		}
	}
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(next State) {
	cb.state = next
	cb.counts = window{inFlight: cb.counts.inFlight}
	if next == StateOpen {
		cb.openedAt = cb.cfg.Now()
	}
	breakerStateGauge.WithLabelValues(cb.cfg.Name).Set(float64(next))
}
