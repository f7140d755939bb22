package academy

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/entitlement"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/storage"
)

// RemindExpiring appends a subscription notification when the signed-in
// user's paid window ends within the horizon. Each end date is reminded at
// most once per process. It reports whether a reminder was appended.
func (a *Academy) RemindExpiring(ctx context.Context, within time.Duration) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user := a.user
	if user == nil || user.IsGuest || user.SubscriptionEndDate == nil {
		return false, nil
	}

	now := a.clock()
	status := entitlement.Compute(user, now)
	if status.Kind != entitlement.KindPaid || !status.IsActive {
		return false, nil
	}

	remaining := user.SubscriptionEndDate.Sub(now)
	if remaining > within {
		return false, nil
	}

	end := *user.SubscriptionEndDate
	if last, ok := a.remindedFor[user.ID]; ok && last.Equal(end) {
		return false, nil
	}

	days := int(math.Max(1, float64(status.DaysLeft)))
	a.appendNotification(domain.NotificationDraft{
		UserID:  user.ID,
		Title:   a.tr.T("notification.subscription_expiring.title"),
		Message: i18n.Sprintf(a.tr, "notification.subscription_expiring.message", days),
		Type:    domain.NotificationSubscription,
	})
	a.remindedFor[user.ID] = end

	if err := a.save(ctx, storage.SlotNotifications, a.ledger.All()); err != nil {
		return true, err
	}

	a.log.Info("expiry reminder appended", slog.String("user_id", user.ID), slog.Int("days_left", days))
	return true, nil
}
