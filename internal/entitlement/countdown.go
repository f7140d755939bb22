package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

// ExpiredLabel is emitted once when a trial countdown reaches zero.
const ExpiredLabel = "انتهت التجربة"

// DefaultTickInterval is used when NewCountdown gets a non-positive interval.
const DefaultTickInterval = time.Second

// FormatRemaining renders d as H:MM:SS, clamping negatives to zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	d = d.Truncate(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second

	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Tick is one countdown update. Label is Remaining formatted as H:MM:SS,
// or ExpiredLabel on the final tick once the trial has run out.
type Tick struct {
	Remaining time.Duration
	Label     string
	Expired   bool
}

// Countdown drives the live trial timer shown to a trial student.
type Countdown struct {
	clock    func() time.Time
	interval time.Duration
	log      *slog.Logger
}

func NewCountdown(clock func() time.Time, interval time.Duration, log *slog.Logger) *Countdown {
	if clock == nil {
		clock = time.Now
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if log == nil {
		log = slog.Default()
	}

	return &Countdown{
		clock:    clock,
		interval: interval,
		log:      log,
	}
}

// Run emits a tick per interval while user's trial is active. It returns after
// emitting the expired tick, when ctx is cancelled, or immediately when the
// user is not on an active trial.
func (c *Countdown) Run(ctx context.Context, user *domain.User, emit func(Tick)) {
	if c == nil || emit == nil {
		return
	}

	status := Compute(user, c.clock())
	if status.Kind != KindTrial || !status.IsActive {
		return
	}

	end := user.TrialStartDate.Add(TrialWindow)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("trial countdown stopped", slog.String("user_id", user.ID))
			return
		case <-ticker.C:
			remaining := end.Sub(c.clock())
			if remaining <= 0 {
				emit(Tick{Label: ExpiredLabel, Expired: true})
				c.log.Info("trial expired", slog.String("user_id", user.ID))
				return
			}

			emit(Tick{Remaining: remaining, Label: FormatRemaining(remaining)})
		}
	}
}
