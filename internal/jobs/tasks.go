package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeExpiryReminder = "subscription:remind"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultReminderWithin is the reminder horizon used when none is configured.
const DefaultReminderWithin = 3 * 24 * time.Hour

// Queues maps queue names to their processing priority.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

type ExpiryReminderPayload struct {
	Within time.Duration `json:"within"`
}

// NewExpiryReminderTask builds the task that warns the signed-in student when
// their paid window ends within the horizon.
func NewExpiryReminderTask(within time.Duration) (*asynq.Task, error) {
	if within <= 0 {
		within = DefaultReminderWithin
	}

	payload, err := json.Marshal(ExpiryReminderPayload{Within: within})
	if err != nil {
		return nil, fmt.Errorf("encode expiry reminder payload: %w", err)
	}

	return asynq.NewTask(TaskTypeExpiryReminder, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func ParseExpiryReminderPayload(t *asynq.Task) (ExpiryReminderPayload, error) {
	var payload ExpiryReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return ExpiryReminderPayload{}, fmt.Errorf("decode expiry reminder payload: %w", err)
	}
	if payload.Within <= 0 {
		payload.Within = DefaultReminderWithin
	}
	return payload, nil
}
