// Package entitlement decides whether a user may play paid content right now.
// Results are pure functions of the user record and the clock and are never cached.
package entitlement

import (
	"math"
	"time"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

// Kind names the rule that granted or denied access.
type Kind string

const (
	// KindGuest is the browse-only visitor profile. It never has access.
	KindGuest Kind = "guest"
	// KindTrial is a user inside or past their 24-hour trial window.
	KindTrial Kind = "trial"
	// KindPaid is a user with a subscription end date, expired or not.
	KindPaid Kind = "paid"
	// KindNone is a signed-out user or one with neither trial nor subscription.
	KindNone Kind = "none"
)

const (
	// TrialWindow is how long a trial grants access from its start.
	TrialWindow = 24 * time.Hour
	// Day is the unit DaysLeft is counted in.
	Day = 24 * time.Hour
	// NominalCycleDays scales the paid progress bar regardless of the plan bought.
	NominalCycleDays = 30
)

// Status is the access decision for one user at one instant. RemainingMs is
// negative once a window has closed; ProgressPct is always within 0-100.
type Status struct {
	IsActive    bool    `json:"isActive"`
	Kind        Kind    `json:"kind"`
	RemainingMs int64   `json:"remainingMs"`
	ProgressPct float64 `json:"progressPct"`
	DaysLeft    int     `json:"daysLeft"`
}

// Remaining returns RemainingMs as a duration.
func (s Status) Remaining() time.Duration {
	return time.Duration(s.RemainingMs) * time.Millisecond
}

// Compute evaluates, in priority order: guest, trial, no subscription, paid.
func Compute(user *domain.User, now time.Time) Status {
	if user == nil {
		return Status{Kind: KindNone}
	}

	if user.IsGuest {
		return Status{Kind: KindGuest}
	}

	if user.IsTrial && user.TrialStartDate != nil {
		remaining := user.TrialStartDate.Add(TrialWindow).Sub(now)
		return Status{
			IsActive:    remaining > 0,
			Kind:        KindTrial,
			RemainingMs: remaining.Milliseconds(),
			ProgressPct: clampPct(float64(remaining) / float64(TrialWindow) * 100),
		}
	}

	if user.SubscriptionEndDate == nil {
		return Status{Kind: KindNone}
	}

	diff := user.SubscriptionEndDate.Sub(now)
	days := daysLeft(diff)

	return Status{
		IsActive:    days > 0,
		Kind:        KindPaid,
		RemainingMs: diff.Milliseconds(),
		ProgressPct: clampPct(float64(days) / NominalCycleDays * 100),
		DaysLeft:    days,
	}
}

// CanPlay reports whether a lesson may be played under the given status.
func CanPlay(lesson domain.Lesson, status Status) bool {
	return lesson.IsFree || status.IsActive
}

// daysLeft is the ceiling of diff measured in whole days at millisecond precision.
func daysLeft(diff time.Duration) int {
	return int(math.Ceil(float64(diff.Milliseconds()) / float64(Day.Milliseconds())))
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
