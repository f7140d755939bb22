package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const defaultConcurrency = 4

// Enqueuer is the part of asynq.Client the reminder catch-up needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Options configures a Runtime. A non-positive Concurrency uses four
// workers; ReminderWithin falls back to DefaultReminderWithin.
type Options struct {
	Redis          asynq.RedisConnOpt
	Concurrency    int
	ReminderCron   string
	ReminderWithin time.Duration
	// CatchUpWindow dedupes the reminder queued at start so restarts do
	// not stack them.
	CatchUpWindow time.Duration
}

// Runtime owns the asynq worker, the cron scheduler and the client used to
// queue tasks. Handlers are registered before Start.
type Runtime struct {
	opts      Options
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	log       *slog.Logger
}

func NewRuntime(opts Options, log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ReminderWithin <= 0 {
		opts.ReminderWithin = DefaultReminderWithin
	}
	log = log.With(slog.String("component", "jobs"))
	asynqLog := newAsynqLogger(log)

	return &Runtime{
		opts:   opts,
		client: asynq.NewClient(opts.Redis),
		server: asynq.NewServer(opts.Redis, asynq.Config{
			Queues:         Queues,
			Concurrency:    opts.Concurrency,
			RetryDelayFunc: asynq.DefaultRetryDelayFunc,
			Logger:         asynqLog,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				log.ErrorContext(ctx, "task failed",
					slog.String("task_type", task.Type()),
					slog.Int("retried", retried),
					slog.Any("error", err),
				)
			}),
		}),
		mux: asynq.NewServeMux(),
		scheduler: asynq.NewScheduler(opts.Redis, &asynq.SchedulerOpts{
			Logger: asynqLog,
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					log.Warn("scheduled enqueue failed", slog.Any("error", err))
					return
				}
				log.Debug("scheduled task queued", slog.String("task_id", info.ID), slog.String("queue", info.Queue))
			},
		}),
		log: log,
	}
}

func (r *Runtime) Handle(taskType string, h asynq.Handler) {
	r.mux.Handle(taskType, h)
}

// Start begins processing, registers the reminder cron entry and queues a
// catch-up reminder for the time the process was down.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.server.Start(r.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	task, err := NewExpiryReminderTask(r.opts.ReminderWithin)
	if err != nil {
		return err
	}
	entryID, err := r.scheduler.Register(r.opts.ReminderCron, task)
	if err != nil {
		return fmt.Errorf("register expiry reminder on %q: %w", r.opts.ReminderCron, err)
	}
	if err := r.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	r.log.InfoContext(ctx, "jobs started",
		slog.String("cron", r.opts.ReminderCron),
		slog.String("entry_id", entryID),
		slog.Duration("within", r.opts.ReminderWithin),
		slog.Int("concurrency", r.opts.Concurrency),
	)

	return EnqueueReminder(ctx, r.client, r.opts.ReminderWithin, r.opts.CatchUpWindow)
}

// Stop halts the scheduler first so nothing new is queued, then drains
// the worker.
func (r *Runtime) Stop(context.Context) error {
	r.scheduler.Shutdown()
	r.server.Shutdown()
	return r.client.Close()
}

// EnqueueReminder queues a one-off expiry reminder. With a positive unique
// window a duplicate inside it is not an error.
func EnqueueReminder(ctx context.Context, q Enqueuer, within, unique time.Duration) error {
	task, err := NewExpiryReminderTask(within)
	if err != nil {
		return err
	}

	var opts []asynq.Option
	if unique > 0 {
		opts = append(opts, asynq.Unique(unique))
	}
	if _, err := q.EnqueueContext(ctx, task, opts...); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("enqueue expiry reminder: %w", err)
	}
	return nil
}
