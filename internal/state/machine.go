package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "academy:console:lock:"
	lockTTL       = 5 * time.Second
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrStateNotFound     = errors.New("conversation state not found")
	ErrStateLocked       = errors.New("state is locked, try again later")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder observes every accepted transition. Nil
// removes the observer.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		recorder = func(string, string) {}
	}
	transitionRecorder = recorder
}

// Locker is the Redis surface used for per-chat locks.
type Locker interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// unlockScript deletes the lock only while it still holds our token, so an
// expired lock taken over by another process is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type StateMachine interface {
	// Current returns the chat's state, idle when nothing is stored.
	Current(ctx context.Context, chatID int64) (*UserState, error)
	// TransitionTo moves the chat to newState, carrying paymentID along.
	TransitionTo(ctx context.Context, chatID int64, newState State, paymentID string) error
	// Reset returns the chat to idle by dropping its state.
	Reset(ctx context.Context, chatID int64) error
}

type machine struct {
	storage Storage
	locker  Locker
	token   string
	log     *slog.Logger
}

// NewStateMachine builds the FSM over storage. A nil locker disables
// cross-process locking.
func NewStateMachine(storage Storage, log *slog.Logger, locker Locker) StateMachine {
	if log == nil {
		log = slog.Default()
	}
	return &machine{storage: storage, locker: locker, token: uuid.NewString(), log: log}
}

func (m *machine) Current(ctx context.Context, chatID int64) (*UserState, error) {
	st, err := m.storage.GetState(ctx, chatID)
	switch {
	case errors.Is(err, ErrStateNotFound):
		return &UserState{ChatID: chatID, CurrentState: StateIdle}, nil
	case err != nil:
		return nil, fmt.Errorf("get conversation state: %w", err)
	}
	return st, nil
}

func (m *machine) TransitionTo(ctx context.Context, chatID int64, newState State, paymentID string) error {
	return m.locked(ctx, chatID, func() error {
		current, err := m.Current(ctx, chatID)
		if err != nil {
			return err
		}

		from := current.CurrentState
		if !IsTransitionAllowed(from, newState) {
			m.log.Warn("invalid state transition",
				slog.Int64("chat_id", chatID),
				slog.String("from", string(from)),
				slog.String("to", string(newState)),
			)
			return ErrInvalidTransition
		}

		if newState == StateIdle {
			err = m.storage.ClearState(ctx, chatID)
		} else {
			err = m.storage.SetState(ctx, chatID, &UserState{ChatID: chatID, CurrentState: newState, PaymentID: paymentID})
		}
		if err != nil {
			return err
		}

		transitionRecorder(string(from), string(newState))
		return nil
	})
}

func (m *machine) Reset(ctx context.Context, chatID int64) error {
	return m.locked(ctx, chatID, func() error {
		return m.storage.ClearState(ctx, chatID)
	})
}

// locked runs fn while holding the chat's lock. A held lock fails fast
// with ErrStateLocked; the operator simply presses again.
func (m *machine) locked(ctx context.Context, chatID int64, fn func() error) error {
	if m.locker == nil {
		return fn()
	}

	key := lockKeyPrefix + strconv.FormatInt(chatID, 10)
	acquired, err := m.locker.SetNX(ctx, key, m.token, lockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire conversation lock: %w", err)
	}
	if !acquired {
		m.log.Debug("conversation lock already held", slog.Int64("chat_id", chatID))
		return ErrStateLocked
	}

	defer func() {
		if err := unlockScript.Run(context.WithoutCancel(ctx), m.locker, []string{key}, m.token).Err(); err != nil {
			m.log.Error("failed to release conversation lock", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}
	}()
	return fn()
}
