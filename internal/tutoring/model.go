package tutoring

import (
	"context"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a chat transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type ChatRequest struct {
	Lesson  domain.Lesson `json:"lesson"`
	Student string        `json:"student"`
	History []Turn        `json:"history"`
	Message string        `json:"message"`
}

// Reply is the assistant's answer. Fallback marks the in-character reply
// sent when the model could not be reached.
type Reply struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// Generator produces one chat completion for the transcript, whose last
// turn is the student's new message.
type Generator interface {
	Generate(ctx context.Context, instruction string, transcript []Turn) (string, error)
}

// LiveEvent is one message received from a live audio stream.
type LiveEvent struct {
	// Audio is 24 kHz mono 16-bit PCM.
	Audio        []byte
	Interrupted  bool
	TurnComplete bool
}

// LiveStream is a bidirectional audio connection to the model.
type LiveStream interface {
	SendAudio(ctx context.Context, pcm []byte) error
	Receive() (LiveEvent, error)
	Close() error
}

type LiveConnector interface {
	Connect(ctx context.Context, instruction string) (LiveStream, error)
}
