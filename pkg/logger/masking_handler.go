package logger

import (
	"context"
	"log/slog"
	"strings"
)

const masked = "***"

var sensitiveKeys = []string{
	"password",
	"password_hash",
	"token",
	"secret",
	"api_key",
	"authorization",
	"dsn",
	"trial_code",
}

// partialKeys keep their last digits visible so operators can still tell
// records apart.
var partialKeys = []string{
	"phone",
	"user_phone",
}

const visibleSuffix = 4

// MaskingHandler wraps a slog.Handler and masks sensitive attributes before delegating.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = maskAttr(attr)
	}
	return &MaskingHandler{next: h.next.WithAttrs(out)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

// Handle masks sensitive attributes, including those nested in groups.
func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, out)
}

func maskAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		nested := make([]slog.Attr, len(group))
		for i, a := range group {
			nested[i] = maskAttr(a)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(nested...)}
	}

	switch {
	case matchesKey(attr.Key, sensitiveKeys):
		return slog.String(attr.Key, masked)
	case matchesKey(attr.Key, partialKeys):
		return slog.String(attr.Key, maskTail(attr.Value.String()))
	default:
		return attr
	}
}

func matchesKey(key string, keys []string) bool {
	for _, k := range keys {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}

func maskTail(value string) string {
	runes := []rune(value)
	if len(runes) <= visibleSuffix {
		return masked
	}
	return masked + string(runes[len(runes)-visibleSuffix:])
}
