// Package handlers holds the asynq task handlers run by the jobs worker.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/jobs"
)

// Reminder appends an expiry notification when the session user's paid
// window ends within the horizon. It reports whether one was appended.
type Reminder interface {
	RemindExpiring(ctx context.Context, within time.Duration) (bool, error)
}

type ExpiryReminderHandler struct {
	reminder Reminder
	log      *slog.Logger
}

func NewExpiryReminderHandler(reminder Reminder, log *slog.Logger) *ExpiryReminderHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ExpiryReminderHandler{reminder: reminder, log: log}
}

// ProcessTask runs one reminder check. Only retryable failures are handed
// back to asynq for another attempt.
func (h *ExpiryReminderHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.ParseExpiryReminderPayload(t)
	if err != nil {
		h.log.ErrorContext(ctx, "expiry reminder: bad payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	reminded, err := h.reminder.RemindExpiring(ctx, payload.Within)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Retryable {
			return fmt.Errorf("remind expiring: %w", err)
		}
		return fmt.Errorf("%w: remind expiring: %v", asynq.SkipRetry, err)
	}

	h.log.InfoContext(ctx, "expiry reminder checked",
		slog.Duration("within", payload.Within),
		slog.Bool("reminded", reminded),
	)
	return nil
}
