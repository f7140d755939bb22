package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/academy"
	"github.com/Proton-105/sawti-academy/internal/bot"
	"github.com/Proton-105/sawti-academy/internal/database"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/health"
	"github.com/Proton-105/sawti-academy/internal/httpapi"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/idempotency"
	"github.com/Proton-105/sawti-academy/internal/jobs"
	"github.com/Proton-105/sawti-academy/internal/jobs/handlers"
	"github.com/Proton-105/sawti-academy/internal/lifecycle"
	"github.com/Proton-105/sawti-academy/internal/middleware"
	"github.com/Proton-105/sawti-academy/internal/operator"
	"github.com/Proton-105/sawti-academy/internal/ratelimit"
	"github.com/Proton-105/sawti-academy/internal/state"
	"github.com/Proton-105/sawti-academy/internal/storage"
	"github.com/Proton-105/sawti-academy/internal/tutoring"
	"github.com/Proton-105/sawti-academy/pkg/config"
	"github.com/Proton-105/sawti-academy/pkg/graceful"
	"github.com/Proton-105/sawti-academy/pkg/logger"
	"github.com/Proton-105/sawti-academy/pkg/metrics"
	appredis "github.com/Proton-105/sawti-academy/pkg/redis"
)

const (
	cleanupInterval      = 10 * time.Minute
	rateLimitMaxWindow   = time.Hour
	reminderDedupeWindow = time.Hour
	shutdownGrace        = 20 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("academy stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		flush, err := logger.InitSentry(cfg.Sentry.DSN, cfg.AppEnv, cfg.App.Version)
		if err != nil {
			return err
		}
		defer flush()
	}

	lg := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File: logger.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		},
		Sentry: cfg.Sentry.Enabled,
	})
	defer lg.Close()
	log := lg.Logger
	slog.SetDefault(log)

	config.Watch(v,
		func(next *config.Config) {
			if err := lg.SetLevel(next.Log.Level); err != nil {
				log.Warn("config reload: invalid log level", slog.String("level", next.Log.Level))
				return
			}
			log.Info("config reloaded", slog.String("log_level", next.Log.Level))
		},
		func(err error) { log.Warn("config reload failed", slog.Any("error", err)) },
	)

	log.Info("starting academy",
		slog.String("env", cfg.AppEnv),
		slog.String("version", cfg.App.Version),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("port", cfg.Server.Port),
	)

	catalog, err := i18n.Load(cfg.App.Lang)
	if err != nil {
		return err
	}
	for _, lang := range catalog.Languages() {
		if missing := catalog.Missing(lang); len(missing) > 0 {
			log.Warn("untranslated messages", slog.String("lang", lang), slog.Any("keys", missing))
		}
	}
	tr := catalog.Translator(cfg.App.Lang)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled).WithFallback(tr.T("errors.generic"))

	checker := health.NewChecker(log, 0)
	probes := lifecycle.NewProbes(checker, log)
	shutdown := lifecycle.NewShutdown(probes, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdown.Execute(shutdownCtx); err != nil {
			log.Error("shutdown finished with errors", slog.Any("error", err))
		}
	}()

	var rc *appredis.Client
	if cfg.Redis.Addr != "" || cfg.Storage.Driver == "redis" {
		rc, err = appredis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		checker.AddCheck("redis", health.NewRedisChecker(rc.Client))
		shutdown.Register("redis", func(context.Context) error { return rc.Close() })
	}

	store, err := openStore(ctx, cfg, rc, checker, shutdown, log)
	if err != nil {
		return err
	}

	var (
		tb       *telebot.Bot
		notifier academy.Notifier = operator.NewLogNotifier(log)
	)
	if cfg.Bot.Token != "" {
		tb, err = bot.NewClient(cfg.Bot)
		if err != nil {
			return err
		}
		notifier = operator.NewTelegramNotifier(tb, cfg.Bot.OperatorChatID, tr, log)
		checker.AddOptional("telegram", health.NewTelegramChecker(tb))
	}

	ac := academy.New(academy.Config{
		OperatorPhone:     cfg.Operator.Phone,
		OperatorName:      cfg.Operator.Name,
		AdminPhone:        cfg.Operator.AdminPhone,
		AdminPasswordHash: cfg.Operator.AdminPasswordHash,
		TrialCode:         cfg.Operator.TrialCode,
	}, academy.Deps{
		Store:      store,
		Notifier:   notifier,
		Translator: tr,
		Log:        log,
	})
	if err := ac.Load(ctx); err != nil {
		return err
	}

	go metrics.NewAcademyCollector(ac, 0).Run(ctx)

	idem := newIdempotency(ctx, rc, log)
	rateLimit := newRateLimit(ctx, cfg.RateLimit, rc, checker, tr, log)

	if tb != nil {
		console := bot.New(tb, cfg.Bot.OperatorChatID, bot.Deps{
			Reconciler:  ac,
			FSM:         newStateMachine(ctx, cfg.Bot.StateTTL, rc, log),
			Idempotency: idem,
			RateLimit:   rateLimit,
			Translator:  tr,
			ErrHandler:  errHandler,
			Log:         log,
		})
		go console.Start()
		shutdown.Register("telegram", func(context.Context) error {
			console.Stop()
			return nil
		})
	}

	tutor, err := newTutor(ctx, cfg.Tutor, tr, log)
	if err != nil {
		return err
	}

	if err := startJobs(ctx, cfg, rc, ac, shutdown, log); err != nil {
		return err
	}

	api := httpapi.NewServer(httpapi.Deps{
		Academy:     ac,
		Tutor:       tutor,
		Probes:      probes,
		RateLimit:   rateLimit,
		Idempotency: idem,
		ErrHandler:  errHandler,
		Translator:  tr,
		Log:         log,
	})

	srv := graceful.NewServer(log, &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, cfg.Server.ShutdownTimeout)

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}

	log.Info("academy shutting down")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, rc *appredis.Client, checker *health.Checker, shutdown *lifecycle.Shutdown, log *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "redis":
		return storage.NewRedisStore(appredis.NewMetricsClient(rc), cfg.Storage.Namespace, log), nil
	case "postgres":
		db, err := database.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		shutdown.Register("postgres", func(context.Context) error { return db.Close() })
		checker.AddCheck("postgres", health.NewDBChecker(db))

		if err := migrate(ctx, db, cfg.Database.MigrationsDir, log); err != nil {
			return nil, err
		}
		return storage.NewPostgresStore(db, cfg.Storage.Namespace, log), nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

func migrate(ctx context.Context, db *sql.DB, dir string, log *slog.Logger) error {
	var (
		migrator *database.Migrator
		err      error
	)
	if dir != "" {
		migrator, err = database.NewDirMigrator(db, dir, log)
	} else {
		migrator, err = database.NewMigrator(db, nil, log)
	}
	if err != nil {
		return err
	}

	version, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	log.Info("database schema ready", slog.Int64("version", version))
	return nil
}

func newIdempotency(ctx context.Context, rc *appredis.Client, log *slog.Logger) idempotency.Manager {
	if rc == nil {
		return idempotency.NewManager(idempotency.NewMemoryStore(time.Now), log)
	}

	go idempotency.NewCleaner(rc.Client, log, cleanupInterval, httpapi.SubmissionTTL).Run(ctx)
	return idempotency.NewManager(idempotency.NewRedisStore(rc.Client, log), log)
}

func newRateLimit(ctx context.Context, cfg config.RateLimitConfig, rc *appredis.Client, checker *health.Checker, tr i18n.Translator, log *slog.Logger) *middleware.RateLimitMiddleware {
	if !cfg.Enabled {
		return nil
	}

	local := ratelimit.NewMemoryLimiter(log)
	go local.Run(ctx, cleanupInterval, rateLimitMaxWindow)

	var limiter ratelimit.Limiter = local
	if rc != nil {
		adaptive := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rc.Client, log), local, log)
		checker.AddOptional("ratelimit", adaptive)
		limiter = adaptive
		go ratelimit.NewCleaner(rc.Client, log, cleanupInterval, rateLimitMaxWindow).Run(ctx)
	}

	return middleware.NewRateLimitMiddleware(limiter, ratelimit.NewRules(cfg), tr, log)
}

func newStateMachine(ctx context.Context, ttl time.Duration, rc *appredis.Client, log *slog.Logger) state.StateMachine {
	if rc == nil {
		states := state.NewMemoryStorage(time.Now)
		go state.NewCleaner(states, log, ttl, cleanupInterval).Run(ctx)
		return state.NewStateMachine(states, log, nil)
	}

	states := state.NewRedisStorage(rc.Client, ttl, log)
	go state.NewCleaner(states, log, ttl, cleanupInterval).Run(ctx)
	return state.NewStateMachine(states, log, rc.Client)
}

func newTutor(ctx context.Context, cfg config.TutorConfig, tr i18n.Translator, log *slog.Logger) (*tutoring.Service, error) {
	deps := tutoring.Deps{
		Translator: tr,
		Timeout:    cfg.Timeout,
		Log:        log,
	}

	if cfg.APIKey != "" {
		client, err := tutoring.NewGeminiClient(ctx, cfg.APIKey, cfg.ChatModel, cfg.LiveModel, log)
		if err != nil {
			return nil, err
		}
		deps.Generator = client
		deps.Live = client
	} else {
		log.Warn("tutor api key not set, study assistant answers with its fallback reply")
	}

	return tutoring.NewService(deps), nil
}

func startJobs(ctx context.Context, cfg *config.Config, rc *appredis.Client, reminder handlers.Reminder, shutdown *lifecycle.Shutdown, log *slog.Logger) error {
	if !cfg.Jobs.Enabled {
		return nil
	}
	if rc == nil {
		return errors.New("jobs require redis: set redis.addr")
	}

	runtime := jobs.NewRuntime(jobs.Options{
		Redis:          cfg.Redis.AsynqOpt(),
		Concurrency:    cfg.Jobs.Concurrency,
		ReminderCron:   cfg.Jobs.ReminderCron,
		ReminderWithin: cfg.Jobs.ReminderWithin,
		CatchUpWindow:  reminderDedupeWindow,
	}, log)
	runtime.Handle(jobs.TaskTypeExpiryReminder, handlers.NewExpiryReminderHandler(reminder, log))
	shutdown.Register("jobs", runtime.Stop)

	return runtime.Start(ctx)
}
