package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/payment"
)

// PendingPerPage is how many payment cards one /pending page shows.
const PendingPerPage = 5

// PaymentCard renders the text of a payment request for the operator.
func PaymentCard(t i18n.Translator, p domain.PaymentRequest) string {
	return i18n.Sprintf(t, "bot.payment_card",
		p.UserName,
		p.UserPhone,
		p.PlanName,
		payment.FormatAmount(p.Amount),
		string(p.WalletType),
		p.TransactionID,
	)
}

// PaymentActions builds the confirm/reject row for one payment request.
func PaymentActions(t i18n.Translator, paymentID string) (*telebot.ReplyMarkup, error) {
	return Inline([]InlineButton{
		{Text: text(t, "bot.confirm_button", "✅"), Callback: Callback{Action: ActionConfirm, Arg: paymentID}},
		{Text: text(t, "bot.reject_button", "❌"), Callback: Callback{Action: ActionReject, Arg: paymentID}},
	})
}

// PendingPage slices pending for page and returns the visible items plus the
// pagination markup, or nil markup when everything fits on one page.
func PendingPage(t i18n.Translator, pending []domain.PaymentRequest, page int) ([]domain.PaymentRequest, *telebot.ReplyMarkup, error) {
	total := TotalPages(len(pending), PendingPerPage)
	page = min(max(page, 1), total)

	start := min((page-1)*PendingPerPage, len(pending))
	visible := pending[start:min(start+PendingPerPage, len(pending))]
	if total == 1 {
		return visible, nil, nil
	}

	markup, err := Inline(PaginationButtons(t, ActionPending, page, total))
	if err != nil {
		return nil, nil, err
	}
	return visible, markup, nil
}
