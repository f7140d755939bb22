// Package health aggregates connectivity checks for the components the
// academy service depends on: the session store, Redis and the Telegram API.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"
)

// Component statuses.
const (
	StatusOK       = "OK"
	StatusFailing  = "FAILING"
	StatusDegraded = "DEGRADED"
)

const defaultTimeout = 3 * time.Second

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Component is the outcome of one check. An optional component that fails
// is DEGRADED and does not make the report unhealthy.
type Component struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// Report is the outcome of one Check run, keyed by component name.
type Report struct {
	Healthy    bool                 `json:"healthy"`
	Components map[string]Component `json:"components"`
}

// Failed returns the names of failing required components in sorted order.
func (r Report) Failed() []string { return r.names(StatusFailing) }

// Degraded returns the names of failing optional components in sorted order.
func (r Report) Degraded() []string { return r.names(StatusDegraded) }

func (r Report) names(status string) []string {
	var names []string
	for name, c := range r.Components {
		if c.Status == status {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type registration struct {
	check    Checkable
	optional bool
}

// Checker aggregates health checks for multiple components.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]registration
}

// NewChecker instantiates a Checker. A non-positive timeout uses three seconds
// per component.
func NewChecker(log *slog.Logger, timeout time.Duration) *Checker {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Checker{log: log, timeout: timeout, checks: map[string]registration{}}
}

// AddCheck registers a component the service cannot run without.
func (c *Checker) AddCheck(name string, check Checkable) { c.add(name, check, false) }

// AddOptional registers a component whose failure only degrades the
// service, such as the operator console.
func (c *Checker) AddOptional(name string, check Checkable) { c.add(name, check, true) }

func (c *Checker) add(name string, check Checkable, optional bool) {
	if name == "" || check == nil {
		return
	}
	c.mu.Lock()
	c.checks[name] = registration{check: check, optional: optional}
	c.mu.Unlock()
}

// Check runs all registered checks concurrently, each bounded by the
// checker timeout.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	report := Report{Healthy: true, Components: make(map[string]Component, len(checks))}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, reg := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			comp := c.run(ctx, name, reg)

			mu.Lock()
			report.Components[name] = comp
			if comp.Status == StatusFailing {
				report.Healthy = false
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return report
}

func (c *Checker) run(ctx context.Context, name string, reg registration) Component {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := reg.check.HealthCheck(checkCtx)
	comp := Component{Status: StatusOK, LatencyMs: time.Since(start).Milliseconds()}
	if err == nil {
		return comp
	}

	comp.Error = err.Error()
	level := slog.LevelError
	comp.Status = StatusFailing
	if reg.optional {
		level = slog.LevelWarn
		comp.Status = StatusDegraded
	}
	c.log.Log(ctx, level, "health check failed", slog.String("component", name), slog.Any("error", err))
	return comp
}

// DBChecker verifies connectivity to a PostgreSQL database.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to a Redis instance.
type RedisChecker struct {
	pinger Pinger
}

func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// ErrBotNotStarted is reported before the operator console has resolved its
// own account.
var ErrBotNotStarted = errors.New("telegram bot is not initialized or disconnected")

// TelegramChecker verifies that the operator console is connected to the
// Telegram Bot API.
type TelegramChecker struct {
	bot *telebot.Bot
}

func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

func (c *TelegramChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return ErrBotNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
