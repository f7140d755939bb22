package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/handlers"
	"github.com/Proton-105/sawti-academy/internal/idempotency"
)

// UpdateTTL is how long a handled Telegram update is remembered.
const UpdateTTL = 24 * time.Hour

// Idempotency runs a console handler at most once per Telegram update, so a
// redelivered confirm button does not reconcile the same payment twice.
// Updates without a stable identity pass straight through.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if manager == nil || next == nil {
			return next
		}

		return func(c telebot.Context) error {
			kind, key := updateKey(c)
			if key == "" {
				return next(c)
			}

			result, err := manager.Execute(context.Background(), key, UpdateTTL, func(context.Context) (any, error) {
				return nil, next(c)
			})
			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				log.Info("operator update still in progress", slog.String("kind", kind))
				return nil
			case err != nil:
				return err
			case result.FromCache:
				log.Info("duplicate operator update skipped", slog.String("kind", kind))
			}
			return nil
		}
	}
}

// updateKey identifies a callback by its query id, or a message by chat and
// message id.
func updateKey(c telebot.Context) (string, string) {
	if c == nil {
		return "", ""
	}

	if cb := c.Callback(); cb != nil {
		switch {
		case cb.ID != "":
			return "callback", idempotency.Key("bot", "cb", cb.ID)
		case cb.Message != nil:
			return "callback", idempotency.Key("bot", "cb-msg", chatOf(cb.Message), cb.Message.ID)
		}
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 {
		return "message", idempotency.Key("bot", "msg", chatOf(msg), msg.ID)
	}
	return "", ""
}

func chatOf(msg *telebot.Message) int64 {
	if msg.Chat == nil {
		return 0
	}
	return msg.Chat.ID
}
