package ratelimit

import (
	"fmt"
	"time"

	"github.com/Proton-105/sawti-academy/pkg/config"
)

// Route names with their own budget.
const (
	RouteLogin    = "login"
	RouteSubmit   = "submit"
	RouteChat     = "chat"
	RouteOperator = "operator"
)

// Rules resolves configured budgets for routes and clients.
type Rules struct {
	config    config.RateLimitConfig
	whitelist map[string]struct{}
}

func NewRules(cfg config.RateLimitConfig) *Rules {
	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, key := range cfg.Whitelist {
		whitelist[key] = struct{}{}
	}

	return &Rules{config: cfg, whitelist: whitelist}
}

func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted reports whether the client key bypasses every limit.
func (r *Rules) IsWhitelisted(clientKey string) bool {
	_, ok := r.whitelist[clientKey]
	return ok
}

// RouteLimit returns the budget of a named route.
func (r *Rules) RouteLimit(route string) (int, time.Duration, error) {
	switch route {
	case RouteLogin:
		return parseRule(r.config.Routes.Login)
	case RouteSubmit:
		return parseRule(r.config.Routes.Submit)
	case RouteChat:
		return parseRule(r.config.Routes.Chat)
	case RouteOperator:
		return parseRule(r.config.Routes.Operator)
	default:
		return 0, 0, fmt.Errorf("unsupported route %q", route)
	}
}

// GlobalLimit returns the per-client budget shared by every route.
func (r *Rules) GlobalLimit() (int, time.Duration, error) {
	return parseRule(r.config.Global)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, fmt.Errorf("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, fmt.Errorf("parse window %q: %w", rule.Window, err)
	}
	if rule.Limit <= 0 {
		return 0, 0, fmt.Errorf("limit must be positive, got %d", rule.Limit)
	}
	return rule.Limit, window, nil
}
