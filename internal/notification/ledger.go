// Package notification keeps the append-only, newest-first notification feed.
package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

// Ledger holds notifications newest first. Entries are never removed and the
// only mutation after append is marking an entry read. A Ledger is not safe
// for concurrent use; the owner serializes access.
type Ledger struct {
	items []domain.AppNotification
	clock func() time.Time
	newID func() string
}

func NewLedger(items []domain.AppNotification, clock func() time.Time, newID func() string) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}

	copied := make([]domain.AppNotification, len(items))
	copy(copied, items)

	return &Ledger{
		items: copied,
		clock: clock,
		newID: newID,
	}
}

// Append stamps draft with a fresh id and the current time and puts it first.
func (l *Ledger) Append(draft domain.NotificationDraft) domain.AppNotification {
	n := domain.AppNotification{
		ID:      l.newID(),
		UserID:  draft.UserID,
		Title:   draft.Title,
		Message: draft.Message,
		Date:    l.clock(),
		IsRead:  false,
		Type:    draft.Type,
	}

	items := make([]domain.AppNotification, 0, len(l.items)+1)
	items = append(items, n)
	l.items = append(items, l.items...)

	return n
}

// MarkRead flags the notification read. Unknown ids and already-read entries
// are no-ops; the result reports whether anything changed.
func (l *Ledger) MarkRead(id string) bool {
	for i := range l.items {
		if l.items[i].ID != id {
			continue
		}
		if l.items[i].IsRead {
			return false
		}
		l.items[i].IsRead = true
		return true
	}
	return false
}

func (l *Ledger) UnreadCountFor(userID string) int {
	count := 0
	for _, n := range l.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count
}

// ForUser returns userID's notifications, newest first.
func (l *Ledger) ForUser(userID string) []domain.AppNotification {
	out := make([]domain.AppNotification, 0)
	for _, n := range l.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// All returns a copy of every entry, newest first.
func (l *Ledger) All() []domain.AppNotification {
	out := make([]domain.AppNotification, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) Len() int {
	return len(l.items)
}
