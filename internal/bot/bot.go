// Package bot is the operator console: a Telegram bot, restricted to the
// operator chat, that lists pending transfers and confirms or rejects them.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/bot/handlers"
	"github.com/Proton-105/sawti-academy/internal/bot/keyboard"
	errors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/idempotency"
	"github.com/Proton-105/sawti-academy/internal/middleware"
	"github.com/Proton-105/sawti-academy/internal/state"
	"github.com/Proton-105/sawti-academy/pkg/config"
)

// Deps are the collaborators of the console. Idempotency and RateLimit are optional.
type Deps struct {
	Reconciler  handlers.Reconciler
	FSM         state.StateMachine
	Idempotency idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
	Translator  i18n.Translator
	ErrHandler  *errors.Handler
	Log         *slog.Logger
}

// Bot wraps telebot.Bot with the console router.
type Bot struct {
	telebot *telebot.Bot
	router  *Router
	log     *slog.Logger
}

// NewClient builds the telegram client configured for polling or webhook
// delivery. The operator notifier shares it with the console.
func NewClient(cfg config.BotConfig) (*telebot.Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Token,
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New attaches the console router to tb.
func New(tb *telebot.Bot, operatorChatID int64, deps Deps) *Bot {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	b := &Bot{
		telebot: tb,
		router:  NewConsoleRouter(operatorChatID, deps),
		log:     deps.Log,
	}

	tb.Handle(telebot.OnText, b.router.Route)
	tb.Handle(telebot.OnCallback, b.router.Route)

	return b
}

// NewConsoleRouter wires the console commands, callbacks and conversation
// states behind the middleware chain.
func NewConsoleRouter(operatorChatID int64, deps Deps) *Router {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	tr := deps.Translator

	router := NewRouter(deps.FSM, log)

	// Errors are handled outside idempotency so failed updates are not
	// remembered and a redelivery runs again.
	router.Use(
		RecoveryMiddleware(log, deps.ErrHandler),
		ErrorHandlingMiddleware(deps.ErrHandler),
		OperatorOnlyMiddleware(operatorChatID, tr, log),
	)
	if deps.RateLimit != nil {
		router.Use(deps.RateLimit.Bot)
	}
	router.Use(
		LoggingMiddleware(log),
		middleware.Metrics,
		middleware.Idempotency(deps.Idempotency, log),
	)

	router.Command(CommandStart, handlers.NewStartHandler(deps.FSM, tr, log))
	router.Command(CommandCancel, handlers.NewCancelHandler(deps.FSM, tr, log))
	router.Command(CommandPending, handlers.NewPendingHandler(deps.Reconciler, tr, log))

	router.Callback(keyboard.ActionPending, handlers.NewPendingPageCallback(deps.Reconciler, tr, log))
	router.Callback(keyboard.ActionConfirm, handlers.NewConfirmCallback(deps.Reconciler, tr, log))
	router.Callback(keyboard.ActionReject, handlers.NewRejectCallback(deps.Reconciler, deps.FSM, tr, log))

	router.OnState(state.StateAwaitingRejectReason, handlers.NewRejectReasonHandler(deps.Reconciler, deps.FSM, tr, log))
	router.Fallback(handlers.NewUnknownHandler(tr))

	return router
}

// Start runs the telegram bot event loop. It blocks until Stop.
func (b *Bot) Start() {
	if b.telebot != nil {
		if b.telebot.Me != nil {
			b.log.Info("telegram bot started", slog.String("username", b.telebot.Me.Username))
		}
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot for the operator notifier and health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}
