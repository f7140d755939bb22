package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/sawti-academy/pkg/logger"
)

// DefaultUserMessage answers errors that carry no user message of their own.
const DefaultUserMessage = "صار خطأ، حاول مرة ثانية"

// Handler logs an error once, reports the serious ones to Sentry and picks
// the message shown to the student or operator.
type Handler struct {
	log      *slog.Logger
	sentry   bool
	fallback string
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentry: sentryEnabled, fallback: DefaultUserMessage}
}

// WithFallback returns a copy of h that answers unexplained errors with msg,
// usually the localized errors.generic text.
func (h *Handler) WithFallback(msg string) *Handler {
	out := *h
	if msg != "" {
		out.fallback = msg
	}
	return &out
}

// Fallback is the message used for errors without a user message.
func (h *Handler) Fallback() string {
	if h == nil {
		return DefaultUserMessage
	}
	return h.fallback
}

// Handle returns the user message for err and whether retrying may succeed.
// A cancelled request is logged at debug level only: the caller went away.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if errors.Is(err, context.Canceled) {
		h.log.LogAttrs(ctx, slog.LevelDebug, "request cancelled", slog.String("error", err.Error()))
		return h.fallback, true
	}

	appErr, known := classify(err)

	attrs := []slog.Attr{
		slog.String("message", err.Error()),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
	}
	if appErr.Code != "" {
		attrs = append(attrs, slog.String("code", appErr.Code))
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}

	level, msg := slog.LevelError, "application error"
	switch {
	case !known:
		msg = "unknown error"
	case appErr.Severity == SeverityLow:
		level = slog.LevelWarn
	}
	h.log.LogAttrs(ctx, level, msg, attrs...)

	if h.sentry && (appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical) {
		report(ctx, err, appErr)
	}

	if appErr.UserMessage != "" {
		return appErr.UserMessage, appErr.Retryable
	}
	return h.fallback, appErr.Retryable
}

// classify returns the AppError in err's chain, or a high-severity
// stand-in for plain errors.
func classify(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}
	return &AppError{Message: err.Error(), Severity: SeverityHigh}, false
}

func report(ctx context.Context, err error, appErr *AppError) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if appErr.Code != "" {
			scope.SetTag("code", appErr.Code)
		}
		scope.SetTag("severity", string(appErr.Severity))
		if id := logger.CorrelationIDFromContext(ctx); id != "" {
			scope.SetTag("correlation_id", id)
		}
		hub.CaptureException(err)
	})
}
