package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/handlers"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/i18n"
)

// RecoveryMiddleware turns a handler panic into a reported error and a
// generic reply to the operator.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) (err error) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				log.Error("panic recovered in handler", slog.Any("panic", p), slog.String("stack", string(debug.Stack())))

				msg := userMessage(errHandler, fmt.Errorf("panic recovered: %v", p))
				if sendErr := c.Send(msg); sendErr != nil {
					log.Error("failed to notify operator about panic", slog.Any("error", sendErr))
				}
				err = nil
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports a failed update and shows the operator
// the localized message: an alert for button presses, a chat message
// otherwise. The error is consumed.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			msg := userMessage(errHandler, err)
			if c.Callback() != nil {
				_ = c.Respond(&telebot.CallbackResponse{Text: msg, ShowAlert: true})
				return nil
			}
			_ = c.Send(msg)
			return nil
		}
	}
}

func userMessage(errHandler *apperrors.Handler, err error) string {
	if errHandler == nil {
		return errHandler.Fallback()
	}
	msg, _ := errHandler.Handle(context.Background(), err)
	return msg
}

// LoggingMiddleware logs one line per update. Free text may be a
// rejection reason, so only its length is recorded.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			start := time.Now()
			err := next(c)

			attrs := []slog.Attr{
				slog.String("action", describeUpdate(c)),
				slog.Int("text_len", len(c.Text())),
				slog.Duration("duration", time.Since(start)),
			}
			if sender := c.Sender(); sender != nil {
				attrs = append(attrs, slog.Int64("user_id", sender.ID))
			}
			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.Any("error", err))
			}
			log.LogAttrs(context.Background(), level, "handled update", attrs...)

			return err
		}
	}
}

func describeUpdate(c telebot.Context) string {
	if cb := c.Callback(); cb != nil {
		return "callback:" + cb.Data
	}
	if text := strings.TrimSpace(c.Text()); strings.HasPrefix(text, "/") {
		return commandOf(text)
	}
	return "text"
}

// OperatorOnlyMiddleware drops updates that do not come from the operator
// chat. A zero chat id admits nobody.
func OperatorOnlyMiddleware(operatorChatID int64, tr i18n.Translator, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			var chatID int64
			if chat := c.Chat(); chat != nil {
				chatID = chat.ID
			}
			if operatorChatID != 0 && chatID == operatorChatID {
				return next(c)
			}

			log.Warn("update from foreign chat rejected", slog.Int64("chat_id", chatID))
			refusal := tr.T("bot.not_operator")
			if c.Callback() != nil {
				return c.Respond(&telebot.CallbackResponse{Text: refusal})
			}
			return c.Send(refusal)
		}
	}
}
