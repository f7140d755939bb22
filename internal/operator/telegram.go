package operator

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/keyboard"
	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/i18n"
)

// Sender is the subset of *telebot.Bot used to push messages.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramNotifier posts each new payment request to the operator chat with
// inline confirm and reject buttons.
type TelegramNotifier struct {
	sender Sender
	chatID int64
	tr     i18n.Translator
	log    *slog.Logger
}

func NewTelegramNotifier(sender Sender, chatID int64, tr i18n.Translator, log *slog.Logger) *TelegramNotifier {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	if log == nil {
		log = slog.Default()
	}

	return &TelegramNotifier{
		sender: sender,
		chatID: chatID,
		tr:     tr,
		log:    log,
	}
}

func (n *TelegramNotifier) PaymentSubmitted(ctx context.Context, p domain.PaymentRequest) error {
	if n == nil || n.sender == nil || n.chatID == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	markup, err := keyboard.PaymentActions(n.tr, p.ID)
	if err != nil {
		return fmt.Errorf("build payment actions: %w", err)
	}

	if _, err := n.sender.Send(telebot.ChatID(n.chatID), keyboard.PaymentCard(n.tr, p), markup); err != nil {
		n.log.Error("failed to notify operator",
			slog.String("payment_id", p.ID),
			slog.Int64("chat_id", n.chatID),
			slog.Any("error", err),
		)
		return fmt.Errorf("send operator alert: %w", err)
	}

	n.log.Info("operator notified", slog.String("payment_id", p.ID))
	return nil
}

// LogNotifier records submissions in the log only. It is used when no
// operator chat is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) PaymentSubmitted(_ context.Context, p domain.PaymentRequest) error {
	n.log.Info("payment awaiting manual reconciliation",
		slog.String("payment_id", p.ID),
		slog.String("user_id", p.UserID),
		slog.String("transaction_id", p.TransactionID),
	)
	return nil
}
