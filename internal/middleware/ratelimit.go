package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/handlers"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/ratelimit"
)

// RateLimitMiddleware enforces the configured budgets for operator updates
// and HTTP routes.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	tr      i18n.Translator
	log     *slog.Logger
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, tr i18n.Translator, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		tr:      tr,
		log:     log,
	}
}

// allow reports whether key may proceed under route. Limiter failures and
// misconfigured rules let the request through.
func (m *RateLimitMiddleware) allow(ctx context.Context, route, key string) (*ratelimit.Result, bool) {
	if m == nil || m.limiter == nil || !m.rules.Enabled() || m.rules.IsWhitelisted(key) {
		return nil, true
	}

	limit, window, err := m.rules.RouteLimit(route)
	if err != nil {
		limit, window, err = m.rules.GlobalLimit()
	}
	if err != nil {
		m.log.Error("rate limit rule unavailable", slog.String("route", route), slog.Any("error", err))
		return nil, true
	}

	result, err := m.limiter.Check(ctx, ratelimit.Key(route, key), limit, window)
	switch {
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		return result, false
	case err != nil:
		m.log.Warn("rate limiter error", slog.String("route", route), slog.Any("error", err))
		return nil, true
	case result != nil && !result.Allowed:
		return result, false
	default:
		return result, true
	}
}

// Bot limits operator updates per Telegram sender.
func (m *RateLimitMiddleware) Bot(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		key := strconv.FormatInt(sender.ID, 10)
		if _, ok := m.allow(context.Background(), ratelimit.RouteOperator, key); ok {
			return next(c)
		}

		m.log.Warn("operator rate limit exceeded", slog.Int64("user_id", sender.ID))
		if c.Callback() != nil {
			return c.Respond(&telebot.CallbackResponse{Text: m.message()})
		}
		return c.Send(m.message())
	}
}

// LimitedFunc writes the response for a rejected HTTP request.
type LimitedFunc func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)

// HTTP limits requests to route per client. The client key is the remote
// address host, so chi's RealIP should run earlier in the chain.
func (m *RateLimitMiddleware) HTTP(route string, onLimited LimitedFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			result, ok := m.allow(r.Context(), route, key)
			if ok {
				if result != nil {
					w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				}
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := result.RetryAfter(time.Now())
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))

			m.log.Warn("http rate limit exceeded", slog.String("route", route), slog.String("client", key))
			onLimited(w, r, retryAfter)
		})
	}
}

func (m *RateLimitMiddleware) message() string {
	if m.tr == nil {
		return "rate limit exceeded"
	}
	return m.tr.T("bot.rate_limited")
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
