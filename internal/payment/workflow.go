// Package payment implements the manual reconciliation lifecycle of wallet
// transfers. Every operation is a pure function over a payment collection:
// inputs are never mutated and failures leave no partial result.
package payment

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/sawti-academy/internal/domain"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/i18n"
)

type Workflow struct {
	tr    i18n.Translator
	clock func() time.Time
	newID func() string
	log   *slog.Logger
}

// NewWorkflow builds a workflow. Nil collaborators fall back to the bundled
// Arabic catalog, time.Now and random UUIDs.
func NewWorkflow(tr i18n.Translator, clock func() time.Time, newID func() string, log *slog.Logger) *Workflow {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	if log == nil {
		log = slog.Default()
	}

	return &Workflow{
		tr:    tr,
		clock: clock,
		newID: newID,
		log:   log,
	}
}

// Submit records a new pending request for user at the end of payments.
func (w *Workflow) Submit(
	user *domain.User,
	plan domain.SubscriptionPlan,
	wallet domain.WalletType,
	txnRef string,
	payments []domain.PaymentRequest,
) ([]domain.PaymentRequest, domain.PaymentRequest, error) {
	if user == nil || user.IsGuest {
		return payments, domain.PaymentRequest{}, apperrors.NewValidationError(w.tr.T("payment.login_required"))
	}

	txnRef = strings.TrimSpace(txnRef)
	if txnRef == "" {
		return payments, domain.PaymentRequest{}, apperrors.NewValidationError(w.tr.T("payment.missing_transaction"))
	}

	if !wallet.Valid() {
		return payments, domain.PaymentRequest{}, apperrors.NewValidationError(w.tr.T("payment.invalid_wallet"))
	}

	record := domain.PaymentRequest{
		ID:            w.newID(),
		UserID:        user.ID,
		UserName:      user.Name,
		UserPhone:     user.Phone,
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		Amount:        plan.PriceIQD,
		WalletType:    wallet,
		TransactionID: txnRef,
		Status:        domain.PaymentPending,
		Date:          w.clock(),
	}

	updated := make([]domain.PaymentRequest, 0, len(payments)+1)
	updated = append(updated, payments...)
	updated = append(updated, record)

	w.log.Info("payment submitted",
		slog.String("payment_id", record.ID),
		slog.String("user_id", record.UserID),
		slog.String("plan", record.PlanName),
		slog.String("wallet", string(record.WalletType)),
	)

	return updated, record, nil
}

// Confirm marks a pending request confirmed and drafts the subscription
// notification for its owner.
func (w *Workflow) Confirm(id string, payments []domain.PaymentRequest) ([]domain.PaymentRequest, domain.PaymentRequest, domain.NotificationDraft, error) {
	updated, record, err := w.transition(id, payments, domain.PaymentConfirmed, nil)
	if err != nil {
		return payments, domain.PaymentRequest{}, domain.NotificationDraft{}, err
	}

	draft := domain.NotificationDraft{
		UserID: record.UserID,
		Title:  w.tr.T("notification.subscription_confirmed.title"),
		Message: i18n.Sprintf(w.tr, "notification.subscription_confirmed.message",
			record.PlanName, FormatAmount(record.Amount)),
		Type: domain.NotificationSubscription,
	}

	return updated, record, draft, nil
}

// Reject marks a pending request rejected with reason, or the default reason
// when reason is blank, and drafts the payment notification for its owner.
func (w *Workflow) Reject(id, reason string, payments []domain.PaymentRequest) ([]domain.PaymentRequest, domain.PaymentRequest, domain.NotificationDraft, error) {
	reason = strings.TrimSpace(reason)
	stored := reason
	if stored == "" {
		stored = w.tr.T("payment.default_reject_reason")
	}

	updated, record, err := w.transition(id, payments, domain.PaymentRejected, func(p *domain.PaymentRequest) {
		p.RejectionReason = stored
	})
	if err != nil {
		return payments, domain.PaymentRequest{}, domain.NotificationDraft{}, err
	}

	shown := reason
	if shown == "" {
		shown = w.tr.T("notification.payment_rejected.reason_fallback")
	}

	draft := domain.NotificationDraft{
		UserID:  record.UserID,
		Title:   w.tr.T("notification.payment_rejected.title"),
		Message: i18n.Sprintf(w.tr, "notification.payment_rejected.message", shown),
		Type:    domain.NotificationPayment,
	}

	return updated, record, draft, nil
}

func (w *Workflow) transition(
	id string,
	payments []domain.PaymentRequest,
	to domain.PaymentStatus,
	apply func(*domain.PaymentRequest),
) ([]domain.PaymentRequest, domain.PaymentRequest, error) {
	idx := indexOf(payments, id)
	if idx < 0 {
		return nil, domain.PaymentRequest{}, apperrors.NewNotFoundError(fmt.Sprintf("payment request %q not found", id))
	}

	current := payments[idx]
	if !IsTransitionAllowed(current.Status, to) {
		w.log.Warn("invalid payment transition",
			slog.String("payment_id", id),
			slog.String("from", string(current.Status)),
			slog.String("to", string(to)),
		)
		return nil, domain.PaymentRequest{}, apperrors.NewInvalidTransitionError("payment "+id, string(current.Status), string(to))
	}

	record := current
	record.Status = to
	if apply != nil {
		apply(&record)
	}

	updated := make([]domain.PaymentRequest, len(payments))
	copy(updated, payments)
	updated[idx] = record

	transitionRecorder(string(current.Status), string(to))
	w.log.Info("payment reconciled",
		slog.String("payment_id", id),
		slog.String("user_id", record.UserID),
		slog.String("status", string(to)),
	)

	return updated, record, nil
}

func indexOf(payments []domain.PaymentRequest, id string) int {
	for i := range payments {
		if payments[i].ID == id {
			return i
		}
	}
	return -1
}

// FormatAmount renders an IQD amount with thousands separators, e.g. 37,500.
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return sign + b.String()
}
