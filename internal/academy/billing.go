package academy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/entitlement"
	"github.com/Proton-105/sawti-academy/internal/operator"
	"github.com/Proton-105/sawti-academy/internal/storage"
)

type SubmitInput struct {
	PlanID        string            `json:"planId"`
	Wallet        domain.WalletType `json:"walletType"`
	TransactionID string            `json:"transactionId"`
}

// Submission is a recorded payment request plus the link the student uses to
// message the operator.
type Submission struct {
	Payment      domain.PaymentRequest `json:"payment"`
	OperatorLink string                `json:"operatorLink"`
}

// SubmitPayment records a pending request for the signed-in user. Unknown plan
// ids fall back to the monthly plan.
func (a *Academy) SubmitPayment(ctx context.Context, in SubmitInput) (Submission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	plan := domain.ResolvePlan(in.PlanID)

	updated, record, err := a.workflow.Submit(a.user, plan, in.Wallet, in.TransactionID, a.payments)
	if err != nil {
		return Submission{}, err
	}

	a.payments = updated
	if err := a.save(ctx, storage.SlotPayments, a.payments); err != nil {
		return Submission{}, err
	}

	if a.notifier != nil {
		if err := a.notifier.PaymentSubmitted(ctx, record); err != nil {
			a.log.Warn("operator notification failed", slog.String("payment_id", record.ID), slog.Any("error", err))
		}
	}

	return Submission{
		Payment:      record,
		OperatorLink: operator.WhatsAppLink(a.cfg.OperatorPhone, operator.TransferMessage(a.tr, record)),
	}, nil
}

// ConfirmPayment confirms a pending request, notifies its owner and, when the
// owner is the signed-in user, extends their subscription.
func (a *Academy) ConfirmPayment(ctx context.Context, id string) (domain.PaymentRequest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	updated, record, draft, err := a.workflow.Confirm(id, a.payments)
	if err != nil {
		return domain.PaymentRequest{}, err
	}

	a.payments = updated
	a.appendNotification(draft)

	extended := false
	if a.user != nil && a.user.ID == record.UserID {
		a.user = entitlement.Extend(a.user, planOf(record), a.clock())
		extended = true
	}

	if err := a.persistReconciliation(ctx, extended); err != nil {
		return domain.PaymentRequest{}, err
	}

	return record, nil
}

// RejectPayment rejects a pending request and notifies its owner. A blank
// reason is replaced by the default one.
func (a *Academy) RejectPayment(ctx context.Context, id, reason string) (domain.PaymentRequest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	updated, record, draft, err := a.workflow.Reject(id, reason, a.payments)
	if err != nil {
		return domain.PaymentRequest{}, err
	}

	a.payments = updated
	a.appendNotification(draft)

	if err := a.persistReconciliation(ctx, false); err != nil {
		return domain.PaymentRequest{}, err
	}

	return record, nil
}

// persistReconciliation writes every slot a reconciliation touched, even
// after one of them fails. The in-memory session stays authoritative and
// failed slots are rewritten after the next successful write.
func (a *Academy) persistReconciliation(ctx context.Context, userChanged bool) error {
	errs := []error{
		a.save(ctx, storage.SlotPayments, a.payments),
		a.save(ctx, storage.SlotNotifications, a.ledger.All()),
	}
	if userChanged {
		errs = append(errs, a.save(ctx, storage.SlotUser, a.user))
	}
	return errors.Join(errs...)
}

// Payment returns a request by id.
func (a *Academy) Payment(id string) (domain.PaymentRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range a.payments {
		if p.ID == id {
			return p, true
		}
	}
	return domain.PaymentRequest{}, false
}

// Payments returns requests newest first, optionally filtered by status.
func (a *Academy) Payments(status domain.PaymentStatus) []domain.PaymentRequest {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]domain.PaymentRequest, 0, len(a.payments))
	for i := len(a.payments) - 1; i >= 0; i-- {
		p := a.payments[i]
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}
	return out
}

func planOf(p domain.PaymentRequest) domain.SubscriptionPlan {
	if p.PlanID != "" {
		return domain.ResolvePlan(p.PlanID)
	}
	return domain.ResolvePlan(p.PlanName)
}
