// Package academy owns the application session: the signed-in user, payment
// requests, the lesson catalog and the notification ledger. Every mutation is
// serialized, runs through the payment workflow, ledger or entitlement rules,
// and is persisted slot by slot.
package academy

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/entitlement"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/notification"
	"github.com/Proton-105/sawti-academy/internal/payment"
	"github.com/Proton-105/sawti-academy/internal/storage"
	"github.com/Proton-105/sawti-academy/pkg/metrics"
)

// Notifier is told about every new payment request. Failures are logged and
// never reach the student.
type Notifier interface {
	PaymentSubmitted(ctx context.Context, p domain.PaymentRequest) error
}

type Config struct {
	// OperatorPhone is the WhatsApp number students message after a transfer.
	OperatorPhone string
	OperatorName  string
	AdminPhone    string
	// AdminPasswordHash is a bcrypt hash of the operator password.
	AdminPasswordHash string
	TrialCode         string
}

type Deps struct {
	Store       storage.Store
	Notifier    Notifier
	Translator  i18n.Translator
	Clock       func() time.Time
	NewID       func() string
	RetryPolicy *apperrors.RetryPolicy
	Log         *slog.Logger
}

type Academy struct {
	mu sync.Mutex

	cfg      Config
	store    storage.Store
	notifier Notifier
	tr       i18n.Translator
	clock    func() time.Time
	newID    func() string
	retry    apperrors.RetryPolicy
	log      *slog.Logger
	validate *validator.Validate
	workflow *payment.Workflow

	user     *domain.User
	payments []domain.PaymentRequest
	lessons  []domain.Lesson
	ledger   *notification.Ledger

	pendingTrial *trialRequest
	usedTrials   map[string]struct{}
	remindedFor  map[string]time.Time
	// unsaved holds slots whose last write failed. They are rewritten from
	// memory after the next successful write.
	unsaved map[storage.Slot]struct{}
}

func New(cfg Config, deps Deps) *Academy {
	if deps.Store == nil {
		deps.Store = storage.NewMemoryStore()
	}
	if deps.Translator == nil {
		deps.Translator = i18n.MustDefault()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	retry := apperrors.DefaultRetryPolicy
	if deps.RetryPolicy != nil {
		retry = *deps.RetryPolicy
	}

	return &Academy{
		cfg:         cfg,
		store:       deps.Store,
		notifier:    deps.Notifier,
		tr:          deps.Translator,
		clock:       deps.Clock,
		newID:       deps.NewID,
		retry:       retry,
		log:         deps.Log,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		workflow:    payment.NewWorkflow(deps.Translator, deps.Clock, deps.NewID, deps.Log),
		lessons:     domain.DefaultLessons(),
		ledger:      notification.NewLedger(nil, deps.Clock, deps.NewID),
		usedTrials:  make(map[string]struct{}),
		remindedFor: make(map[string]time.Time),
		unsaved:     make(map[storage.Slot]struct{}),
	}
}

// Load replaces the in-memory session with the persisted one. A catalog that
// was never saved falls back to the default lessons.
func (a *Academy) Load(ctx context.Context) error {
	snap, err := a.store.Load(ctx)
	if err != nil {
		a.log.Error("failed to load session", slog.Any("error", err))
		return apperrors.NewStorageError(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.user = snap.User
	a.payments = snap.Payments
	if snap.HasLessons {
		a.lessons = snap.Lessons
	} else {
		a.lessons = domain.DefaultLessons()
	}
	a.ledger = notification.NewLedger(snap.Notifications, a.clock, a.newID)
	clear(a.unsaved)

	for _, p := range a.payments {
		if p.UserPhone != "" && strings.HasPrefix(p.UserID, trialIDPrefix) {
			a.usedTrials[p.UserPhone] = struct{}{}
		}
	}
	if a.user != nil && a.user.IsTrial && a.user.Phone != "" {
		a.usedTrials[a.user.Phone] = struct{}{}
	}

	a.log.Info("session loaded",
		slog.Bool("signed_in", a.user != nil),
		slog.Int("payments", len(a.payments)),
		slog.Int("lessons", len(a.lessons)),
		slog.Int("notifications", a.ledger.Len()),
	)

	return nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (a *Academy) CurrentUser() *domain.User {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.user.Clone()
}

// Entitlement evaluates the current user's access at the academy clock.
// Anonymous sessions are evaluated as guests.
func (a *Academy) Entitlement() entitlement.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.entitlementLocked()
}

func (a *Academy) entitlementLocked() entitlement.Status {
	user := a.user
	if user == nil {
		user = domain.GuestUser(a.clock())
	}

	status := entitlement.Compute(user, a.clock())
	metrics.RecordEntitlementCheck(string(status.Kind), status.IsActive)

	return status
}

// Gauges implements metrics.GaugeSource.
func (a *Academy) Gauges() metrics.Gauges {
	a.mu.Lock()
	defer a.mu.Unlock()

	g := metrics.Gauges{Lessons: len(a.lessons)}
	for _, p := range a.payments {
		switch p.Status {
		case domain.PaymentPending:
			g.PendingPayments++
		case domain.PaymentConfirmed:
			g.ConfirmedRevenueIQD += p.Amount
		}
	}
	for _, n := range a.ledger.All() {
		if !n.IsRead {
			g.UnreadNotifications++
		}
	}

	return g
}

// save persists one slot, retrying transient failures.
func (a *Academy) save(ctx context.Context, slot storage.Slot, value any) error {
	err := a.retry.Do(ctx, func() error {
		if err := a.store.Save(ctx, slot, value); err != nil {
			a.log.Error("failed to persist slot", slog.String("slot", string(slot)), slog.Any("error", err))
			return apperrors.NewStorageError(err)
		}
		return nil
	})
	a.settle(ctx, slot, err)
	return err
}

func (a *Academy) deleteSlot(ctx context.Context, slot storage.Slot) error {
	err := a.retry.Do(ctx, func() error {
		if err := a.store.Delete(ctx, slot); err != nil {
			a.log.Error("failed to delete slot", slog.String("slot", string(slot)), slog.Any("error", err))
			return apperrors.NewStorageError(err)
		}
		return nil
	})
	a.settle(ctx, slot, err)
	return err
}

// settle tracks the outcome of a write to slot. After a successful write the
// slots left behind by earlier failures are rewritten once from memory, so a
// partially persisted mutation is repaired by the next one.
func (a *Academy) settle(ctx context.Context, slot storage.Slot, err error) {
	if err != nil {
		a.unsaved[slot] = struct{}{}
		return
	}
	delete(a.unsaved, slot)

	for pending := range a.unsaved {
		if err := a.writeFromMemory(ctx, pending); err != nil {
			a.log.Warn("slot still unsaved", slog.String("slot", string(pending)), slog.Any("error", err))
			continue
		}
		delete(a.unsaved, pending)
		a.log.Info("unsaved slot repaired", slog.String("slot", string(pending)))
	}
}

func (a *Academy) writeFromMemory(ctx context.Context, slot storage.Slot) error {
	switch slot {
	case storage.SlotUser:
		if a.user == nil {
			return a.store.Delete(ctx, slot)
		}
		return a.store.Save(ctx, slot, a.user)
	case storage.SlotPayments:
		return a.store.Save(ctx, slot, a.payments)
	case storage.SlotLessons:
		return a.store.Save(ctx, slot, a.lessons)
	case storage.SlotNotifications:
		return a.store.Save(ctx, slot, a.ledger.All())
	}
	return nil
}

func (a *Academy) appendNotification(draft domain.NotificationDraft) domain.AppNotification {
	n := a.ledger.Append(draft)
	metrics.RecordNotification(string(n.Type))
	return n
}

// shortID returns prefix followed by a short random suffix, e.g. "user-3fa9c1d2".
func (a *Academy) shortID(prefix string) string {
	id := strings.ReplaceAll(a.newID(), "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return prefix + id
}
