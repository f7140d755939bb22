package state

import "time"

// State is a step of the operator conversation in the Telegram console.
type State string

const (
	// StateIdle waits for the next command or button press.
	StateIdle State = "idle"
	// StateAwaitingRejectReason treats the next text message as the
	// rejection reason for the payment stored in UserState.PaymentID.
	StateAwaitingRejectReason State = "awaiting_reject_reason"
)

// UserState is the conversation state of one operator chat.
type UserState struct {
	ChatID       int64     `json:"chat_id"`
	CurrentState State     `json:"current_state"`
	PaymentID    string    `json:"payment_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
