package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/handlers"
	"github.com/Proton-105/sawti-academy/internal/bot/keyboard"
	"github.com/Proton-105/sawti-academy/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(commandName(c), status, time.Since(start))

		return err
	}
}

// commandName keeps label cardinality bounded: payment ids and free text
// never become label values.
func commandName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		parsed, err := keyboard.ParseCallback(cb.Data)
		if err != nil {
			return "unknown"
		}
		return "callback_" + parsed.Action
	}

	text := strings.TrimSpace(c.Text())
	if strings.HasPrefix(text, "/") {
		if fields := strings.Fields(text); len(fields) > 0 {
			return strings.SplitN(fields[0], "@", 2)[0]
		}
	}
	if text != "" {
		return "text"
	}

	return "unknown"
}

// HTTPMetrics records request count and latency per chi route pattern.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		metrics.RecordHTTPRequest(route, r.Method, rec.status, time.Since(start))
	})
}
