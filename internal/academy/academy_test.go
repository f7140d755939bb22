package academy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/entitlement"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/storage"
)

var startOfTest = time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	submitted []domain.PaymentRequest
	err       error
}

func (n *recordingNotifier) PaymentSubmitted(_ context.Context, p domain.PaymentRequest) error {
	n.submitted = append(n.submitted, p)
	return n.err
}

// flakyStore fails every write while broken is set, and writes to failSlot
// when it is not empty.
type flakyStore struct {
	*storage.MemoryStore
	broken   bool
	failSlot storage.Slot
}

func (s *flakyStore) Save(ctx context.Context, slot storage.Slot, value any) error {
	if s.broken || slot == s.failSlot {
		return errors.New("connection refused")
	}
	return s.MemoryStore.Save(ctx, slot, value)
}

type fixture struct {
	academy  *Academy
	store    *flakyStore
	clock    *testClock
	notifier *recordingNotifier
}

var testConfig = Config{
	OperatorPhone: "9647700000000",
	OperatorName:  "أستاذ صوتي",
	AdminPhone:    "07700000000",
	TrialCode:     "1234",
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := testConfig
	cfg.AdminPasswordHash = string(hash)

	f := &fixture{
		store:    &flakyStore{MemoryStore: storage.NewMemoryStore()},
		clock:    &testClock{now: startOfTest},
		notifier: &recordingNotifier{},
	}

	seq := 0
	f.academy = New(cfg, Deps{
		Store:    f.store,
		Notifier: f.notifier,
		Clock:    f.clock.Now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%04d-0000", seq)
		},
		RetryPolicy: &apperrors.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, f.academy.Load(context.Background()))

	return f
}

func (f *fixture) storedUser(t *testing.T) *domain.User {
	t.Helper()
	raw := f.store.Raw(storage.SlotUser)
	if raw == nil {
		return nil
	}
	var u domain.User
	require.NoError(t, json.Unmarshal(raw, &u))
	return &u
}

func TestAcademy_Register(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		input   RegisterInput
		wantErr bool
	}{
		{
			name:  "valid",
			input: RegisterInput{Name: " حسين ", Phone: "07801234567", Password: "pass", ConfirmPassword: "pass"},
		},
		{
			name:    "password mismatch",
			input:   RegisterInput{Name: "حسين", Phone: "07801234567", Password: "pass", ConfirmPassword: "other"},
			wantErr: true,
		},
		{
			name:    "short phone",
			input:   RegisterInput{Name: "حسين", Phone: "0780", Password: "pass", ConfirmPassword: "pass"},
			wantErr: true,
		},
		{
			name:    "missing name",
			input:   RegisterInput{Name: "  ", Phone: "07801234567", Password: "pass", ConfirmPassword: "pass"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			user, err := f.academy.Register(ctx, tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				assert.Nil(t, f.academy.CurrentUser())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "حسين", user.Name)
			assert.Equal(t, domain.RoleStudent, user.Role)
			assert.Equal(t, userIDPrefix+"07801234567", user.ID)
			assert.Equal(t, user, f.storedUser(t))
		})
	}
}

func TestAcademy_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("operator with correct password", func(t *testing.T) {
		f := newFixture(t)

		user, err := f.academy.Login(ctx, "07700000000", "secret-pass")
		require.NoError(t, err)
		assert.True(t, user.IsAdmin())
		assert.Equal(t, adminID, user.ID)
	})

	t.Run("operator with wrong password", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.academy.Login(ctx, "07700000000", "nope")
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		assert.Nil(t, f.academy.CurrentUser())
	})

	t.Run("demo subscriber", func(t *testing.T) {
		f := newFixture(t)

		user, err := f.academy.Login(ctx, "07711112222", "1234")
		require.NoError(t, err)
		require.NotNil(t, user.SubscriptionEndDate)
		assert.Equal(t, startOfTest.Add(15*24*time.Hour), *user.SubscriptionEndDate)
		assert.Equal(t, entitlement.KindPaid, f.academy.Entitlement().Kind)
	})

	t.Run("demo student without subscription", func(t *testing.T) {
		f := newFixture(t)

		user, err := f.academy.Login(ctx, "07805556666", "1234")
		require.NoError(t, err)
		assert.Nil(t, user.SubscriptionEndDate)
		assert.False(t, f.academy.Entitlement().IsActive)
	})

	t.Run("short credentials", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.academy.Login(ctx, "0780", "12")
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}

func TestAcademy_TrialFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.VerifyTrial(ctx, "1234")
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition, "verification without a request")

	require.NoError(t, f.academy.RequestTrial(ctx, TrialInput{Name: "زينب", Phone: "07901112233"}))

	_, err = f.academy.VerifyTrial(ctx, "0000")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	user, err := f.academy.VerifyTrial(ctx, " 1234 ")
	require.NoError(t, err)
	assert.True(t, user.IsTrial)
	require.NotNil(t, user.TrialStartDate)
	assert.Equal(t, startOfTest, *user.TrialStartDate)

	status := f.academy.Entitlement()
	assert.Equal(t, entitlement.KindTrial, status.Kind)
	assert.True(t, status.IsActive)

	f.clock.Advance(25 * time.Hour)
	assert.False(t, f.academy.Entitlement().IsActive)

	err = f.academy.RequestTrial(ctx, TrialInput{Name: "زينب", Phone: "07901112233"})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "one trial per phone")
}

func TestAcademy_InstantTrialAndGuest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.academy.StartInstantTrial(ctx)
	require.NoError(t, err)
	assert.True(t, user.IsAnonymousTrial)
	assert.Equal(t, domain.RoleVisitor, user.Role)
	assert.Equal(t, entitlement.KindTrial, f.academy.Entitlement().Kind)

	guest, err := f.academy.Guest(ctx)
	require.NoError(t, err)
	assert.True(t, guest.IsGuest)
	assert.Equal(t, entitlement.KindGuest, f.academy.Entitlement().Kind)

	require.NoError(t, f.academy.Logout(ctx))
	assert.Nil(t, f.academy.CurrentUser())
	assert.Nil(t, f.store.Raw(storage.SlotUser))
}

func TestAcademy_SubmitAndConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.Register(ctx, RegisterInput{Name: "علي", Phone: "07701234567", Password: "pass", ConfirmPassword: "pass"})
	require.NoError(t, err)

	sub, err := f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanQuarterly, Wallet: domain.WalletZainCash, TransactionID: "TX-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, sub.Payment.Status)
	assert.Equal(t, int64(37500), sub.Payment.Amount)
	assert.Contains(t, sub.OperatorLink, "https://wa.me/9647700000000?text=")
	require.Len(t, f.notifier.submitted, 1)
	assert.Equal(t, sub.Payment.ID, f.notifier.submitted[0].ID)

	confirmed, err := f.academy.ConfirmPayment(ctx, sub.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, confirmed.Status)

	user := f.academy.CurrentUser()
	require.NotNil(t, user.SubscriptionEndDate)
	assert.Equal(t, startOfTest.AddDate(0, 3, 0), *user.SubscriptionEndDate)
	assert.Equal(t, user, f.storedUser(t))

	notes := f.academy.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationSubscription, notes[0].Type)
	assert.Equal(t, 1, f.academy.UnreadCount())

	require.NoError(t, f.academy.MarkNotificationRead(ctx, notes[0].ID))
	assert.Equal(t, 0, f.academy.UnreadCount())

	_, err = f.academy.ConfirmPayment(ctx, sub.Payment.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.academy.RejectPayment(ctx, "missing", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAcademy_ConfirmWhileStudentSignedOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	registered, err := f.academy.Register(ctx, RegisterInput{Name: "علي", Phone: "07701234567", Password: "pass", ConfirmPassword: "pass"})
	require.NoError(t, err)
	sub, err := f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanQuarterly, Wallet: domain.WalletZainCash, TransactionID: "TX-1"})
	require.NoError(t, err)
	require.NoError(t, f.academy.Logout(ctx))

	f.clock.Advance(time.Hour)
	_, err = f.academy.Login(ctx, "07700000000", "secret-pass")
	require.NoError(t, err)
	_, err = f.academy.ConfirmPayment(ctx, sub.Payment.ID)
	require.NoError(t, err)
	require.NoError(t, f.academy.Logout(ctx))

	f.clock.Advance(time.Hour)
	user, err := f.academy.Login(ctx, "07701234567", "pass")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	require.NotNil(t, user.SubscriptionEndDate)
	assert.Equal(t, startOfTest.AddDate(0, 3, 0), *user.SubscriptionEndDate)
	assert.Equal(t, user, f.storedUser(t))

	status := f.academy.Entitlement()
	assert.True(t, status.IsActive)
	assert.Equal(t, entitlement.KindPaid, status.Kind)

	assert.Len(t, f.academy.Notifications(), 1)
	assert.Equal(t, 1, f.academy.UnreadCount())
	assert.Len(t, f.academy.Payments(""), 1)
}

func TestAcademy_SignInKeepsLaterSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.Login(ctx, "07711112222", "1234")
	require.NoError(t, err)
	sub, err := f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanMonthly, Wallet: domain.WalletQiCard, TransactionID: "TX-9"})
	require.NoError(t, err)
	require.NoError(t, f.academy.Logout(ctx))

	f.clock.Advance(40 * 24 * time.Hour)
	_, err = f.academy.Login(ctx, "07700000000", "secret-pass")
	require.NoError(t, err)
	_, err = f.academy.ConfirmPayment(ctx, sub.Payment.ID)
	require.NoError(t, err)

	// The replayed month ended before the fresh demo window.
	user, err := f.academy.Login(ctx, "07711112222", "1234")
	require.NoError(t, err)
	require.NotNil(t, user.SubscriptionEndDate)
	assert.Equal(t, f.clock.Now().Add(15*24*time.Hour), *user.SubscriptionEndDate)
}

func TestAcademy_SubmitRequiresUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.academy.SubmitPayment(context.Background(), SubmitInput{PlanID: domain.PlanMonthly, Wallet: domain.WalletQiCard, TransactionID: "TX"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, f.academy.Payments(""))
	assert.Empty(t, f.notifier.submitted)
}

func TestAcademy_NotifierFailureDoesNotFailSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("telegram down")

	_, err := f.academy.Login(ctx, "07805556666", "1234")
	require.NoError(t, err)

	_, err = f.academy.SubmitPayment(ctx, SubmitInput{PlanID: "unknown", Wallet: domain.WalletAsiaCell, TransactionID: "TX"})
	require.NoError(t, err)

	pending := f.academy.Payments(domain.PaymentPending)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.PlanMonthly, pending[0].PlanID)
}

func TestAcademy_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.Login(ctx, "07805556666", "1234")
	require.NoError(t, err)
	sub, err := f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanMonthly, Wallet: domain.WalletQiCard, TransactionID: "TX"})
	require.NoError(t, err)

	rejected, err := f.academy.RejectPayment(ctx, sub.Payment.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRejected, rejected.Status)
	assert.Equal(t, "بيانات غير صحيحة", rejected.RejectionReason)

	notes := f.academy.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationPayment, notes[0].Type)
	assert.Nil(t, f.academy.CurrentUser().SubscriptionEndDate)
}

func TestAcademy_PersistenceFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.Login(ctx, "07805556666", "1234")
	require.NoError(t, err)

	f.store.broken = true
	_, err = f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanMonthly, Wallet: domain.WalletQiCard, TransactionID: "TX"})
	require.ErrorIs(t, err, apperrors.ErrStorage)

	assert.Len(t, f.academy.Payments(""), 1, "memory stays authoritative")
	assert.Nil(t, f.store.Raw(storage.SlotPayments))

	f.store.broken = false
	_, err = f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanMonthly, Wallet: domain.WalletQiCard, TransactionID: "TX-2"})
	require.NoError(t, err)

	var stored []domain.PaymentRequest
	require.NoError(t, json.Unmarshal(f.store.Raw(storage.SlotPayments), &stored))
	assert.Len(t, stored, 2)
}

func TestAcademy_ReconciliationRepairsPartialWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.Login(ctx, "07805556666", "1234")
	require.NoError(t, err)
	sub, err := f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanMonthly, Wallet: domain.WalletQiCard, TransactionID: "TX"})
	require.NoError(t, err)

	f.store.failSlot = storage.SlotNotifications
	_, err = f.academy.ConfirmPayment(ctx, sub.Payment.ID)
	require.ErrorIs(t, err, apperrors.ErrStorage)

	// The other slots are still written.
	var stored []domain.PaymentRequest
	require.NoError(t, json.Unmarshal(f.store.Raw(storage.SlotPayments), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, domain.PaymentConfirmed, stored[0].Status)
	require.NotNil(t, f.storedUser(t).SubscriptionEndDate)
	assert.Nil(t, f.store.Raw(storage.SlotNotifications))

	f.store.failSlot = ""
	_, err = f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanMonthly, Wallet: domain.WalletQiCard, TransactionID: "TX-2"})
	require.NoError(t, err)

	var notes []domain.AppNotification
	require.NoError(t, json.Unmarshal(f.store.Raw(storage.SlotNotifications), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationSubscription, notes[0].Type)
}

func TestAcademy_LoadRestoresSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.Login(ctx, "07805556666", "1234")
	require.NoError(t, err)
	sub, err := f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanYearly, Wallet: domain.WalletQiCard, TransactionID: "TX"})
	require.NoError(t, err)
	_, err = f.academy.ConfirmPayment(ctx, sub.Payment.ID)
	require.NoError(t, err)

	restored := New(testConfig, Deps{Store: f.store, Clock: f.clock.Now, Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, restored.Load(ctx))

	assert.Equal(t, f.academy.CurrentUser(), restored.CurrentUser())
	assert.Equal(t, f.academy.Payments(""), restored.Payments(""))
	assert.Equal(t, f.academy.Notifications(), restored.Notifications())
	assert.Len(t, restored.Lessons(""), len(domain.DefaultLessons()))
}

func TestAcademy_Lessons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Len(t, f.academy.Lessons(""), 3)
	assert.Len(t, f.academy.Lessons("المقامات"), 2)
	assert.Len(t, f.academy.Lessons("النفس"), 1)
	assert.Empty(t, f.academy.Lessons("غير موجود"))

	_, err := f.academy.Lesson("404")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	free, err := f.academy.CanPlay("1")
	require.NoError(t, err)
	assert.True(t, free, "free lesson plays for anonymous sessions")

	locked, err := f.academy.CanPlay("2")
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = f.academy.AddLesson(ctx, domain.Lesson{Title: "", AudioURL: "https://example.com/a.mp3"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.academy.AddLesson(ctx, domain.Lesson{Title: "درس", AudioURL: "not a url"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	added, err := f.academy.AddLesson(ctx, domain.Lesson{Title: " مقام الصبا ", AudioURL: "https://example.com/saba.mp3", Category: "المقامات"})
	require.NoError(t, err)
	assert.Equal(t, "مقام الصبا", added.Title)
	assert.Equal(t, "2025-04-10", added.UploadDate)
	assert.NotEmpty(t, added.ID)

	lessons := f.academy.Lessons("")
	require.Len(t, lessons, 4)
	assert.Equal(t, added, lessons[3])
	assert.NotNil(t, f.store.Raw(storage.SlotLessons))
}

func TestAcademy_StatsAndStudents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	submit := func(phone, plan, txn string) domain.PaymentRequest {
		t.Helper()
		_, err := f.academy.Login(ctx, phone, "1234")
		require.NoError(t, err)
		sub, err := f.academy.SubmitPayment(ctx, SubmitInput{PlanID: plan, Wallet: domain.WalletQiCard, TransactionID: txn})
		require.NoError(t, err)
		return sub.Payment
	}

	first := submit("07805556666", domain.PlanMonthly, "A")
	f.clock.Advance(time.Hour)
	second := submit("07805556666", domain.PlanQuarterly, "B")
	f.clock.Advance(time.Hour)
	other := submit("07809998888", domain.PlanYearly, "C")

	_, err := f.academy.ConfirmPayment(ctx, first.ID)
	require.NoError(t, err)
	_, err = f.academy.ConfirmPayment(ctx, second.ID)
	require.NoError(t, err)
	_, err = f.academy.RejectPayment(ctx, other.ID, "مرفوض")
	require.NoError(t, err)

	stats := f.academy.Stats()
	assert.Equal(t, int64(15000+37500), stats.TotalRevenue)
	assert.Equal(t, 0, stats.PendingCount)
	assert.Equal(t, 2, stats.TotalStudents)
	assert.Equal(t, 1, stats.ActiveStudents)
	assert.Equal(t, 2, stats.NewThisMonth)

	students := f.academy.Students("")
	require.Len(t, students, 2)
	assert.Equal(t, "07805556666", students[0].Phone)
	require.NotNil(t, students[0].SubscriptionEndDate)
	assert.Equal(t, startOfTest.AddDate(0, 4, 0), *students[0].SubscriptionEndDate)
	assert.Nil(t, students[1].SubscriptionEndDate)

	assert.Len(t, f.academy.Students("9998"), 1)
}

func TestAcademy_RemindExpiring(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.Login(ctx, "07711112222", "1234")
	require.NoError(t, err)

	sent, err := f.academy.RemindExpiring(ctx, 3*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, sent, "fifteen days left")

	f.clock.Advance(13 * 24 * time.Hour)

	sent, err = f.academy.RemindExpiring(ctx, 3*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = f.academy.RemindExpiring(ctx, 3*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, sent, "one reminder per end date")

	notes := f.academy.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationSubscription, notes[0].Type)
	assert.Contains(t, notes[0].Message, "2")
}

func TestAcademy_Gauges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.academy.Login(ctx, "07805556666", "1234")
	require.NoError(t, err)
	_, err = f.academy.SubmitPayment(ctx, SubmitInput{PlanID: domain.PlanMonthly, Wallet: domain.WalletQiCard, TransactionID: "TX"})
	require.NoError(t, err)

	g := f.academy.Gauges()
	assert.Equal(t, 1, g.PendingPayments)
	assert.Equal(t, int64(0), g.ConfirmedRevenueIQD)
	assert.Equal(t, 3, g.Lessons)
}
