package academy

import (
	"context"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/storage"
)

// Notifications returns the signed-in user's notifications, newest first.
func (a *Academy) Notifications() []domain.AppNotification {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.user == nil {
		return []domain.AppNotification{}
	}
	return a.ledger.ForUser(a.user.ID)
}

func (a *Academy) UnreadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.user == nil {
		return 0
	}
	return a.ledger.UnreadCountFor(a.user.ID)
}

// MarkNotificationRead is idempotent and silent for unknown ids. Storage is
// written only when something changed.
func (a *Academy) MarkNotificationRead(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ledger.MarkRead(id) {
		return nil
	}
	return a.save(ctx, storage.SlotNotifications, a.ledger.All())
}
