package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rx3lixir/tempvoice/internal/room"
)

const (
	TypeReconcileRooms = "rooms:reconcile"
	queueName          = "maintenance"
)

// Reconciler is the part of room.Manager the sweep drives
type Reconciler interface {
	Reconcile(ctx context.Context) (room.ReconcileReport, error)
}

type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Worker runs the periodic reconciliation sweep on asynq. The scheduler
// enqueues one task per interval and the server executes it; running several
// bot processes against one redis still sweeps once per interval.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	handler   *Handler
	cfg       Config
	log       *slog.Logger
}

func NewWorker(redisOpt asynq.RedisConnOpt, reconciler Reconciler, cfg Config, log *slog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	adapter := &asynqLogger{log: log}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{queueName: 1},
		Logger:      adapter,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retries, _ := asynq.GetRetryCount(ctx)
			log.Error("task failed",
				"task_type", task.Type(),
				"retries", retries,
				"error", err)
		}),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   adapter,
	})

	return &Worker{
		server:    server,
		scheduler: scheduler,
		handler:   &Handler{reconciler: reconciler, log: log},
		cfg:       cfg,
		log:       log,
	}
}

// Start registers the periodic task and starts both the scheduler and the
// server in the background
func (w *Worker) Start() error {
	task := asynq.NewTask(TypeReconcileRooms, nil)

	spec := fmt.Sprintf("@every %s", w.cfg.Interval)
	entryID, err := w.scheduler.Register(spec, task,
		asynq.Queue(queueName),
		asynq.Timeout(w.cfg.Timeout),
		asynq.MaxRetry(0),
		asynq.Unique(w.cfg.Interval),
	)
	if err != nil {
		return fmt.Errorf("failed to register reconcile task: %w", err)
	}

	w.log.Info("reconcile task registered",
		"schedule", spec,
		"entry_id", entryID)

	if err := w.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	mux := asynq.NewServeMux()
	mux.Handle(TypeReconcileRooms, w.handler)

	if err := w.server.Start(mux); err != nil {
		w.scheduler.Shutdown()
		if errors.Is(err, asynq.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	return nil
}

func (w *Worker) Shutdown() {
	w.log.Info("shutting down reconcile worker")
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

// Handler executes one sweep per task
type Handler struct {
	reconciler Reconciler
	log        *slog.Logger
}

func NewHandler(reconciler Reconciler, log *slog.Logger) *Handler {
	return &Handler{reconciler: reconciler, log: log}
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	report, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	h.log.Debug("reconcile task done",
		"task_type", t.Type(),
		"torn_down", report.TornDown,
		"failed", report.Failed,
		"duration", time.Since(start))

	return nil
}

// asynqLogger routes asynq's own logs through slog
type asynqLogger struct {
	log *slog.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.log.Error(fmt.Sprint(args...)) }
