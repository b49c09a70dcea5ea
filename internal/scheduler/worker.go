package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// WorkerConfig collects what the scheduler process needs
type WorkerConfig struct {
	Redis      asynq.RedisConnOpt
	Cron       string
	MaxRetry   int
	RetryDelay time.Duration
	Timeout    time.Duration
	Logger     *logrus.Logger
}

// Worker runs the asynq server and the cron scheduler side by side
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    logrus.FieldLogger
}

// FixedDelay returns an asynq retry delay func that always waits d
func FixedDelay(d time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		return d
	}
}

// NewWorker wires the trigger to the task type and registers the cron entry
func NewWorker(cfg WorkerConfig, trigger *Trigger) (*Worker, error) {
	if cfg.Cron == "" {
		return nil, errors.New("scheduler: empty cron spec")
	}

	srv := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency:    1,
		Queues:         map[string]int{QueueDefault: 1},
		RetryDelayFunc: FixedDelay(cfg.RetryDelay),
		Logger:         cfg.Logger,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNAVRefresh, trigger.Handle)

	scheduler := asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   cfg.Logger,
	})
	_, err := scheduler.Register(cfg.Cron, NewNAVRefreshTask(),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(cfg.MaxRetry),
		asynq.Timeout(cfg.Timeout+5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Worker{
		server:    srv,
		mux:       mux,
		scheduler: scheduler,
		logger:    cfg.Logger.WithField("component", "scheduler"),
	}, nil
}

// Run processes tasks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return err
	}
	w.logger.Info("scheduler started")

	<-ctx.Done()
	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("scheduler stopped")
	return nil
}

// Enqueue submits one refresh right away, outside the cron schedule
func Enqueue(ctx context.Context, client *asynq.Client, maxRetry int) (*asynq.TaskInfo, error) {
	return client.EnqueueContext(ctx, NewNAVRefreshTask(),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(maxRetry),
	)
}
