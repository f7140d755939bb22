package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Shutdown closes what the process opened in reverse order of
// registration, so a connection registered early outlives the workers
// that use it. Probes, when set, report draining before the first hook.
type Shutdown struct {
	mu     sync.Mutex
	hooks  []hook
	probes *Probes
	log    *slog.Logger
	once   sync.Once
	err    error
}

func NewShutdown(probes *Probes, log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}
	return &Shutdown{probes: probes, log: log}
}

// Register adds a named hook. Nil hooks are ignored.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	s.hooks = append(s.hooks, hook{name: name, fn: fn})
	s.mu.Unlock()
}

// Execute runs every hook once, last registered first. A failing hook does
// not stop the ones after it; all failures are joined. Later calls return
// the first result.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.once.Do(func() { s.err = s.run(ctx) })
	return s.err
}

func (s *Shutdown) run(ctx context.Context) error {
	if s.probes != nil {
		s.probes.Drain()
	}

	s.mu.Lock()
	hooks := append([]hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown started", slog.Int("hooks", len(hooks)))

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		hookStart := time.Now()
		if err := h.fn(ctx); err != nil {
			s.log.Error("shutdown hook failed", slog.String("hook", h.name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		s.log.Debug("shutdown hook done", slog.String("hook", h.name), slog.Duration("took", time.Since(hookStart)))
	}

	s.log.Info("shutdown finished", slog.Duration("elapsed", time.Since(start)), slog.Int("failed", len(errs)))
	return errors.Join(errs...)
}
