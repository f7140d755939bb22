package academy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/Proton-105/sawti-academy/internal/domain"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/storage"
)

const (
	userIDPrefix      = "user-"
	trialIDPrefix     = "trial-"
	anonTrialIDPrefix = "anon-trial-"
	adminID           = "admin"

	minPhoneLength    = 10
	minPasswordLength = 4

	// demoSubscriberMarker gives demo students whose phone contains it an
	// active subscription.
	demoSubscriberMarker = "111"
	demoSubscriptionDays = 15
	demoStudentName      = "طالب عراقي"
)

type RegisterInput struct {
	Name            string `json:"name" validate:"required"`
	Phone           string `json:"phone" validate:"required,min=10"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

type TrialInput struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required,min=10"`
}

type trialRequest struct {
	name  string
	phone string
}

var fieldMessageKeys = map[string]string{
	"Name":            "auth.name_required",
	"Phone":           "auth.invalid_phone",
	"Password":        "auth.password_required",
	"ConfirmPassword": "auth.password_mismatch",
	"Title":           "lesson.title_required",
	"AudioURL":        "lesson.audio_required",
}

// validationError converts the first failing field into a localized
// validation error.
func (a *Academy) validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		if key, ok := fieldMessageKeys[fieldErrs[0].Field()]; ok {
			return apperrors.NewValidationError(a.tr.T(key))
		}
		return apperrors.NewValidationError(fieldErrs[0].Error())
	}
	return apperrors.NewValidationError(err.Error())
}

// Register creates a student account and signs it in.
func (a *Academy) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := a.validate.Struct(in); err != nil {
		return nil, a.validationError(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	user := &domain.User{
		ID:       studentID(in.Phone),
		Phone:    in.Phone,
		Name:     in.Name,
		Role:     domain.RoleStudent,
		JoinedAt: a.clock(),
	}

	return a.signInLocked(ctx, user)
}

// Login signs in the operator (bcrypt-checked against config) or a demo student.
func (a *Academy) Login(ctx context.Context, phone, password string) (*domain.User, error) {
	phone = strings.TrimSpace(phone)

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock()

	if a.cfg.AdminPhone != "" && phone == a.cfg.AdminPhone {
		if a.cfg.AdminPasswordHash == "" ||
			bcrypt.CompareHashAndPassword([]byte(a.cfg.AdminPasswordHash), []byte(password)) != nil {
			a.log.Warn("operator login rejected")
			return nil, a.invalidCredentials()
		}

		return a.signInLocked(ctx, &domain.User{
			ID:       adminID,
			Phone:    phone,
			Name:     a.cfg.OperatorName,
			Role:     domain.RoleAdmin,
			JoinedAt: now,
		})
	}

	if len(phone) < minPhoneLength || len(password) < minPasswordLength {
		return nil, a.invalidCredentials()
	}

	user := &domain.User{
		ID:       studentID(phone),
		Phone:    phone,
		Name:     demoStudentName,
		Role:     domain.RoleStudent,
		JoinedAt: now,
	}
	if strings.Contains(phone, demoSubscriberMarker) {
		end := now.Add(demoSubscriptionDays * 24 * time.Hour)
		user.SubscriptionEndDate = &end
	}

	return a.signInLocked(ctx, user)
}

func (a *Academy) invalidCredentials() error {
	return apperrors.NewUnauthorizedError("invalid credentials", a.tr.T("auth.invalid_credentials"))
}

// RequestTrial starts phone verification for a 24-hour trial. Each phone
// number gets one trial.
func (a *Academy) RequestTrial(ctx context.Context, in TrialInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := a.validate.Struct(in); err != nil {
		return a.validationError(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, used := a.usedTrials[in.Phone]; used {
		return apperrors.NewValidationError(a.tr.T("auth.trial_used"))
	}

	a.pendingTrial = &trialRequest{name: in.Name, phone: in.Phone}
	a.log.Info("trial verification requested", slog.String("phone", in.Phone))

	return nil
}

// VerifyTrial completes a pending trial request with the verification code.
func (a *Academy) VerifyTrial(ctx context.Context, code string) (*domain.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pendingTrial == nil {
		return nil, apperrors.NewStateError(a.tr.T("auth.no_pending_trial"))
	}

	if strings.TrimSpace(code) != a.cfg.TrialCode {
		return nil, apperrors.NewValidationError(a.tr.T("auth.invalid_code"))
	}

	now := a.clock()
	user := &domain.User{
		ID:             a.shortID(trialIDPrefix),
		Phone:          a.pendingTrial.phone,
		Name:           a.pendingTrial.name,
		Role:           domain.RoleStudent,
		JoinedAt:       now,
		IsTrial:        true,
		TrialStartDate: &now,
	}

	signedIn, err := a.signInLocked(ctx, user)
	if err != nil {
		return nil, err
	}

	a.usedTrials[user.Phone] = struct{}{}
	a.pendingTrial = nil

	return signedIn, nil
}

// StartInstantTrial signs in an anonymous trial user without verification.
func (a *Academy) StartInstantTrial(ctx context.Context) (*domain.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock()
	return a.signInLocked(ctx, &domain.User{
		ID:               a.shortID(anonTrialIDPrefix),
		Name:             a.tr.T("auth.anonymous_name"),
		Role:             domain.RoleVisitor,
		JoinedAt:         now,
		IsTrial:          true,
		TrialStartDate:   &now,
		IsAnonymousTrial: true,
	})
}

// Guest signs in the browse-only visitor profile.
func (a *Academy) Guest(ctx context.Context) (*domain.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.signInLocked(ctx, domain.GuestUser(a.clock()))
}

// Logout clears the user slot. Payments, lessons and notifications stay.
func (a *Academy) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.user = nil
	a.pendingTrial = nil

	return a.deleteSlot(ctx, storage.SlotUser)
}

// studentID keys a student by phone so payments and notifications addressed
// to them survive logging out and back in.
func studentID(phone string) string {
	return userIDPrefix + phone
}

func (a *Academy) signInLocked(ctx context.Context, user *domain.User) (*domain.User, error) {
	a.restoreSubscriptionLocked(user)
	a.user = user

	if err := a.save(ctx, storage.SlotUser, a.user); err != nil {
		return nil, err
	}

	a.log.Info("user signed in", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	return user.Clone(), nil
}

// restoreSubscriptionLocked replays the confirmed payments on record for the
// user's phone, so a payment confirmed while they were signed out still grants
// access. The later of the replayed end and the current one wins.
func (a *Academy) restoreSubscriptionLocked(user *domain.User) {
	if user.Role == domain.RoleAdmin || user.Phone == "" {
		return
	}

	for _, st := range deriveStudents(a.payments) {
		if st.Phone != user.Phone || st.SubscriptionEndDate == nil {
			continue
		}
		if user.SubscriptionEndDate != nil && !st.SubscriptionEndDate.After(*user.SubscriptionEndDate) {
			return
		}

		end := *st.SubscriptionEndDate
		user.SubscriptionEndDate = &end
		if end.After(a.clock()) {
			user.IsTrial = false
			user.TrialStartDate = nil
		}
		a.log.Info("subscription restored from confirmed payments",
			slog.String("user_id", user.ID), slog.Time("ends_at", end))
		return
	}
}
