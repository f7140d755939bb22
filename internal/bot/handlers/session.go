package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/keyboard"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/state"
)

// NewStartHandler greets the operator and drops any half-finished conversation.
func NewStartHandler(fsm state.StateMachine, tr i18n.Translator, log *slog.Logger) Handler {
	return resetAndReply(fsm, tr, log, "bot.start")
}

// NewCancelHandler abandons the current conversation, such as a pending
// rejection reason, and shows the menu again.
func NewCancelHandler(fsm state.StateMachine, tr i18n.Translator, log *slog.Logger) Handler {
	return resetAndReply(fsm, tr, log, "bot.cancelled")
}

func resetAndReply(fsm state.StateMachine, tr i18n.Translator, log *slog.Logger, key string) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		id, ok := chatID(c)
		if !ok {
			log.Warn("handler invoked without chat", slog.String("reply", key))
			return nil
		}

		if err := fsm.Reset(context.Background(), id); err != nil {
			log.Error("failed to reset conversation", slog.Int64("chat_id", id), slog.Any("error", err))
			return err
		}

		return c.Send(tr.T(key), keyboard.OperatorMenu(tr))
	}
}
