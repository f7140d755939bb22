package handlers

import (
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/keyboard"
	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/i18n"
)

// NewPendingHandler lists the first page of pending payment requests, one
// card with confirm/reject buttons per request.
func NewPendingHandler(rec Reconciler, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		return sendPendingPage(c, rec, tr, 1)
	}
}

// NewPendingPageCallback serves the pagination buttons of /pending.
func NewPendingPageCallback(rec Reconciler, tr i18n.Translator, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb, err := keyboard.ParseCallback(c.Callback().Data)
		if err != nil {
			log.Warn("malformed pagination callback", slog.Any("error", err))
			return c.Respond()
		}

		page, err := strconv.Atoi(cb.Arg)
		if err != nil {
			page = 1
		}

		if err := c.Respond(); err != nil {
			log.Warn("failed to answer callback", slog.Any("error", err))
		}

		return sendPendingPage(c, rec, tr, page)
	}
}

func sendPendingPage(c telebot.Context, rec Reconciler, tr i18n.Translator, page int) error {
	pending := rec.Payments(domain.PaymentPending)
	if len(pending) == 0 {
		return c.Send(tr.T("bot.pending_empty"))
	}

	visible, markup, err := keyboard.PendingPage(tr, pending, page)
	if err != nil {
		return err
	}

	header := i18n.Sprintf(tr, "bot.pending_header", len(pending))
	if markup != nil {
		err = c.Send(header, markup)
	} else {
		err = c.Send(header)
	}
	if err != nil {
		return err
	}

	for _, p := range visible {
		actions, err := keyboard.PaymentActions(tr, p.ID)
		if err != nil {
			return err
		}
		if err := c.Send(keyboard.PaymentCard(tr, p), actions); err != nil {
			return err
		}
	}

	return nil
}
