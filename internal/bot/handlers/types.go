package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

// SkipCommand answers the reject-reason prompt with the default reason.
const SkipCommand = "/skip"

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Reconciler is the part of the academy the operator console drives.
type Reconciler interface {
	Payments(status domain.PaymentStatus) []domain.PaymentRequest
	Payment(id string) (domain.PaymentRequest, bool)
	ConfirmPayment(ctx context.Context, id string) (domain.PaymentRequest, error)
	RejectPayment(ctx context.Context, id, reason string) (domain.PaymentRequest, error)
}

// chatID identifies the conversation an update belongs to.
func chatID(c telebot.Context) (int64, bool) {
	if c == nil {
		return 0, false
	}
	if chat := c.Chat(); chat != nil {
		return chat.ID, true
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID, true
	}
	return 0, false
}
