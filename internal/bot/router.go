package bot

import (
	"context"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/handlers"
	"github.com/Proton-105/sawti-academy/internal/bot/keyboard"
	"github.com/Proton-105/sawti-academy/internal/state"
)

// Router resolves an update to one handler: callbacks by action, slash
// commands by name, then free text by the chat's conversation state.
// Routes are registered while wiring and only read once the bot runs.
type Router struct {
	commands  map[string]handlers.Handler
	callbacks map[string]handlers.Handler
	states    map[state.State]handlers.Handler
	fallback  handlers.Handler
	chain     []handlers.Middleware

	fsm state.StateMachine
	log *slog.Logger
}

func NewRouter(fsm state.StateMachine, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:  map[string]handlers.Handler{},
		callbacks: map[string]handlers.Handler{},
		states:    map[state.State]handlers.Handler{},
		fsm:       fsm,
		log:       log,
	}
}

func (r *Router) Command(name string, h handlers.Handler) { r.commands[name] = h }

// Callback routes button presses whose callback data carries action.
func (r *Router) Callback(action string, h handlers.CallbackHandler) {
	r.callbacks[action] = handlers.Handler(h)
}

// OnState routes free text sent while the chat is in s.
func (r *Router) OnState(s state.State, h handlers.Handler) { r.states[s] = h }

// Fallback answers updates nothing else matched.
func (r *Router) Fallback(h handlers.Handler) { r.fallback = h }

// Use appends middlewares; the first one registered runs outermost.
func (r *Router) Use(mws ...handlers.Middleware) { r.chain = append(r.chain, mws...) }

// Route runs the matched handler inside the middleware chain.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	h := r.resolve(c)
	if h == nil {
		return nil
	}
	for i := len(r.chain) - 1; i >= 0; i-- {
		h = r.chain[i](h)
	}
	return h(c)
}

func (r *Router) resolve(c telebot.Context) handlers.Handler {
	if cb := c.Callback(); cb != nil {
		parsed, err := keyboard.ParseCallback(cb.Data)
		if err != nil {
			r.log.Info("malformed callback data", slog.String("data", cb.Data))
			return answerOnly
		}
		if h, ok := r.callbacks[parsed.Action]; ok {
			return h
		}
		r.log.Info("no callback handler found", slog.String("action", parsed.Action))
		return answerOnly
	}

	text := strings.TrimSpace(c.Text())
	if strings.HasPrefix(text, "/") {
		if h, ok := r.commands[commandOf(text)]; ok {
			return h
		}
	}

	if h := r.stateHandler(c); h != nil {
		return h
	}
	return r.fallback
}

// stateHandler looks up the chat's conversation. A state store failure
// is logged and the update goes to the fallback.
func (r *Router) stateHandler(c telebot.Context) handlers.Handler {
	if r.fsm == nil || c.Chat() == nil || len(r.states) == 0 {
		return nil
	}

	chatID := c.Chat().ID
	current, err := r.fsm.Current(context.Background(), chatID)
	if err != nil {
		r.log.Warn("conversation state unavailable", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return nil
	}

	h := r.states[current.CurrentState]
	if h == nil && current.CurrentState != state.StateIdle {
		r.log.Debug("no handler registered for state", slog.String("state", string(current.CurrentState)), slog.Int64("chat_id", chatID))
	}
	return h
}

// answerOnly clears the spinner on a button nobody handles.
func answerOnly(c telebot.Context) error { return c.Respond() }

// commandOf strips arguments and the "@botname" suffix from a command.
func commandOf(text string) string {
	cmd, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	return cmd
}
