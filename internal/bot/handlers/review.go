package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/keyboard"
	"github.com/Proton-105/sawti-academy/internal/domain"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/state"
)

// NewConfirmCallback confirms the payment named by a "confirm:<id>" button
// and rewrites the card to show the outcome.
func NewConfirmCallback(rec Reconciler, tr i18n.Translator, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		id := callbackPaymentID(c)
		if id == "" {
			return c.Respond()
		}

		p, err := rec.ConfirmPayment(context.Background(), id)
		if err != nil {
			if alreadyHandled(err) {
				return c.Respond(&telebot.CallbackResponse{Text: tr.T("bot.not_pending")})
			}
			return err
		}

		log.Info("payment confirmed from console",
			slog.String("payment_id", p.ID),
			slog.String("user_phone", p.UserPhone),
			slog.Int64("amount", p.Amount),
		)

		if err := c.Respond(&telebot.CallbackResponse{Text: tr.T("bot.confirmed")}); err != nil {
			log.Warn("failed to answer callback", slog.Any("error", err))
		}

		return c.Edit(keyboard.PaymentCard(tr, p) + "\n\n" + tr.T("bot.confirmed"))
	}
}

// NewRejectCallback starts a rejection: the chat moves to
// StateAwaitingRejectReason and the next text message becomes the reason.
// Pressing reject on another card replaces the payment being rejected.
func NewRejectCallback(rec Reconciler, fsm state.StateMachine, tr i18n.Translator, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		id := callbackPaymentID(c)
		chat, ok := chatID(c)
		if id == "" || !ok {
			return c.Respond()
		}

		if p, found := rec.Payment(id); !found || p.Status != domain.PaymentPending {
			return c.Respond(&telebot.CallbackResponse{Text: tr.T("bot.not_pending")})
		}

		ctx := context.Background()
		if err := fsm.Reset(ctx, chat); err != nil {
			return err
		}
		if err := fsm.TransitionTo(ctx, chat, state.StateAwaitingRejectReason, id); err != nil {
			log.Error("failed to enter reject reason state", slog.Int64("chat_id", chat), slog.Any("error", err))
			return err
		}

		if err := c.Respond(); err != nil {
			log.Warn("failed to answer callback", slog.Any("error", err))
		}

		return c.Send(tr.T("bot.ask_reason"))
	}
}

// NewRejectReasonHandler handles text while the chat awaits a rejection
// reason. SkipCommand or blank text rejects with the default reason.
func NewRejectReasonHandler(rec Reconciler, fsm state.StateMachine, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		chat, ok := chatID(c)
		if !ok {
			return nil
		}

		ctx := context.Background()
		current, err := fsm.Current(ctx, chat)
		if err != nil {
			return err
		}

		paymentID := current.PaymentID
		if paymentID == "" {
			log.Warn("reject reason state without payment", slog.Int64("chat_id", chat))
			return fsm.Reset(ctx, chat)
		}

		reason := strings.TrimSpace(c.Text())
		if reason == SkipCommand {
			reason = ""
		}

		p, rejectErr := rec.RejectPayment(ctx, paymentID, reason)
		if err := fsm.TransitionTo(ctx, chat, state.StateIdle, ""); err != nil {
			log.Error("failed to leave reject reason state", slog.Int64("chat_id", chat), slog.Any("error", err))
		}

		if rejectErr != nil {
			if alreadyHandled(rejectErr) {
				return c.Send(tr.T("bot.not_pending"), keyboard.OperatorMenu(tr))
			}
			return rejectErr
		}

		log.Info("payment rejected from console",
			slog.String("payment_id", p.ID),
			slog.String("reason", p.RejectionReason),
		)

		return c.Send(tr.T("bot.rejected"), keyboard.OperatorMenu(tr))
	}
}

// NewUnknownHandler answers text that matched no command or conversation.
func NewUnknownHandler(tr i18n.Translator) Handler {
	return func(c telebot.Context) error {
		return c.Send(tr.T("bot.unknown_command"), keyboard.OperatorMenu(tr))
	}
}

func callbackPaymentID(c telebot.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}

	parsed, err := keyboard.ParseCallback(cb.Data)
	if err != nil {
		return ""
	}
	return parsed.Arg
}

// alreadyHandled reports errors meaning another operator action got there first.
func alreadyHandled(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidTransition) || errors.Is(err, apperrors.ErrNotFound)
}
