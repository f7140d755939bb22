// Package operator reaches the human who reconciles wallet transfers: a
// WhatsApp deep link for the student and a Telegram alert for the operator.
package operator

import (
	"net/url"
	"strings"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/payment"
)

const whatsAppBase = "https://wa.me/"

// WhatsAppLink builds a wa.me link opening a chat with phone prefilled with message.
func WhatsAppLink(phone, message string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")
	return whatsAppBase + phone + "?text=" + encodeComponent(message)
}

// TransferMessage is the text a student sends the operator after a transfer.
func TransferMessage(t i18n.Translator, p domain.PaymentRequest) string {
	return i18n.Sprintf(t, "payment.operator_message",
		payment.FormatAmount(p.Amount), string(p.WalletType), p.TransactionID)
}

// encodeComponent percent-encodes s for a query value, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
