package payment

import "github.com/Proton-105/sawti-academy/internal/domain"

// validTransitions lists every status change reconciliation may perform.
// Confirmed and rejected requests are terminal; reviewing is never entered.
var validTransitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentPending: {
		domain.PaymentConfirmed,
		domain.PaymentRejected,
	},
}

// IsTransitionAllowed reports whether a payment request may move between statuses.
func IsTransitionAllowed(from, to domain.PaymentStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == to {
			return true
		}
	}

	return false
}

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe payment transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}
