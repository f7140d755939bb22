package logger

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CorrelationHeader carries the correlation id in requests and responses.
const CorrelationHeader = "X-Request-ID"

type correlationIDKey struct{}

// CorrelationIDFromContext returns the correlation identifier stored in ctx, or an empty string when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}

	return ""
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// FromContext returns log annotated with the correlation id of ctx, if any.
func FromContext(ctx context.Context, log *slog.Logger) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		return log.With(slog.String("correlation_id", id))
	}
	return log
}

// Middleware reuses the caller's X-Request-ID or generates one, stores it in
// the request context and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := strings.TrimSpace(r.Header.Get(CorrelationHeader))
		if correlationID == "" || len(correlationID) > 128 {
			correlationID = uuid.NewString()
		}

		w.Header().Set(CorrelationHeader, correlationID)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), correlationID)))
	})
}
