package entitlement

import (
	"time"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

// Extend returns a copy of user whose subscription runs plan.DurationMonths past
// the later of now and the current end date. Trial flags are cleared since a
// paying student is no longer on trial.
func Extend(user *domain.User, plan domain.SubscriptionPlan, now time.Time) *domain.User {
	if user == nil {
		return nil
	}

	months := plan.DurationMonths
	if months <= 0 {
		months = 1
	}

	start := now
	if user.SubscriptionEndDate != nil && user.SubscriptionEndDate.After(now) {
		start = *user.SubscriptionEndDate
	}

	end := start.AddDate(0, months, 0)

	updated := user.Clone()
	updated.SubscriptionEndDate = &end
	updated.IsTrial = false
	updated.TrialStartDate = nil
	updated.IsAnonymousTrial = false
	if updated.Role == domain.RoleVisitor {
		updated.Role = domain.RoleStudent
	}

	return updated
}
