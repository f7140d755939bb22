// Package storage persists the academy's four collections as whole-value JSON
// slots. Every mutation rewrites the full slot; the last write wins.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

type Slot string

const (
	SlotUser          Slot = "user"
	SlotPayments      Slot = "payments"
	SlotLessons       Slot = "lessons"
	SlotNotifications Slot = "notifications"
)

// Slots lists every slot in load order.
func Slots() []Slot {
	return []Slot{SlotUser, SlotPayments, SlotLessons, SlotNotifications}
}

// ErrUnknownSlot is returned when a caller names a slot outside Slots.
var ErrUnknownSlot = errors.New("unknown storage slot")

// Snapshot is the decoded content of all slots. HasLessons distinguishes an
// empty saved catalog from one that was never saved.
type Snapshot struct {
	User          *domain.User
	Payments      []domain.PaymentRequest
	Lessons       []domain.Lesson
	HasLessons    bool
	Notifications []domain.AppNotification
}

// Store is the persistence contract for application state.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, slot Slot, value any) error
	Delete(ctx context.Context, slot Slot) error
}

// backend moves raw slot bytes. read returns nil data for a missing slot.
type backend interface {
	read(ctx context.Context, slot Slot) ([]byte, error)
	write(ctx context.Context, slot Slot, data []byte) error
	remove(ctx context.Context, slot Slot) error
}

func loadSnapshot(ctx context.Context, b backend) (*Snapshot, error) {
	snap := &Snapshot{}

	for _, slot := range Slots() {
		data, err := b.read(ctx, slot)
		if err != nil {
			return nil, fmt.Errorf("read slot %s: %w", slot, err)
		}
		if data == nil {
			continue
		}

		var target any
		switch slot {
		case SlotUser:
			target = &snap.User
		case SlotPayments:
			target = &snap.Payments
		case SlotLessons:
			target = &snap.Lessons
			snap.HasLessons = true
		case SlotNotifications:
			target = &snap.Notifications
		}

		if err := json.Unmarshal(data, target); err != nil {
			return nil, fmt.Errorf("decode slot %s: %w", slot, err)
		}
	}

	return snap, nil
}

func saveSlot(ctx context.Context, b backend, slot Slot, value any) error {
	if !knownSlot(slot) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", slot, err)
	}

	if err := b.write(ctx, slot, data); err != nil {
		return fmt.Errorf("write slot %s: %w", slot, err)
	}
	return nil
}

func deleteSlot(ctx context.Context, b backend, slot Slot) error {
	if !knownSlot(slot) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}

	if err := b.remove(ctx, slot); err != nil {
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}
	return nil
}

func knownSlot(slot Slot) bool {
	for _, s := range Slots() {
		if s == slot {
			return true
		}
	}
	return false
}
