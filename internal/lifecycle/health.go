// Package lifecycle exposes the liveness and readiness probes of the academy
// service and coordinates its graceful shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/Proton-105/sawti-academy/internal/health"
)

// ErrDraining is reported by Readiness once shutdown has begun.
var ErrDraining = errors.New("service is draining")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers readiness from the registered component checks.
type Probes struct {
	log      *slog.Logger
	checker  *health.Checker
	draining atomic.Bool
}

func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, checker: checker}
}

// Liveness reports success while the process is able to serve requests.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails while draining or when a required component fails.
// Degraded optional components are only reported.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrDraining
	}
	if p.checker == nil {
		return nil
	}

	report := p.checker.Check(ctx)
	if report.Healthy {
		return nil
	}
	return fmt.Errorf("unhealthy components: %s", strings.Join(report.Failed(), ", "))
}

// Report returns the per-component status of the last check.
func (p *Probes) Report(ctx context.Context) health.Report {
	if p.checker == nil {
		return health.Report{Healthy: true, Components: map[string]health.Component{}}
	}
	return p.checker.Check(ctx)
}

// Drain marks the service as not ready. It is safe to call repeatedly.
func (p *Probes) Drain() {
	if p.draining.CompareAndSwap(false, true) {
		p.log.Info("readiness switched to draining")
	}
}

func (p *Probes) Draining() bool {
	return p.draining.Load()
}
