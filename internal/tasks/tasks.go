package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/services"
)

// Manager handles the execution of scheduled tasks
type Manager struct {
	logger logrus.FieldLogger
	tasks  []Task
}

// Task represents a scheduled task that needs to be executed
type Task interface {
	Start()
	Stop()
}

// NewManager creates a new task manager
func NewManager(logger logrus.FieldLogger) *Manager {
	return &Manager{
		logger: logger,
		tasks:  make([]Task, 0),
	}
}

// RegisterTask registers a task with the manager
func (m *Manager) RegisterTask(task Task) {
	m.tasks = append(m.tasks, task)
}

// StartScheduledTasks starts all registered tasks
func (m *Manager) StartScheduledTasks() {
	for _, task := range m.tasks {
		task.Start()
	}
	m.logger.WithField("tasks", len(m.tasks)).Info("started scheduled tasks")
}

// StopAllTasks stops all running tasks
func (m *Manager) StopAllTasks() {
	for _, task := range m.tasks {
		task.Stop()
	}
	m.logger.Info("stopped scheduled tasks")
}

// NAVRefreshTask runs the NAV refresh on a fixed interval inside the server
// process. It is the in-process alternative to the asynq scheduler.
type NAVRefreshTask struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	logger   logrus.FieldLogger

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// NewNAVRefreshTask creates a ticker-driven refresh task. Each run is bounded
// by timeout.
func NewNAVRefreshTask(runner Runner, interval, timeout time.Duration, logger logrus.FieldLogger) *NAVRefreshTask {
	return &NAVRefreshTask{
		runner:   runner,
		interval: interval,
		timeout:  timeout,
		logger:   logger.WithField("task", "nav_refresh"),
	}
}

// Start begins the refresh loop
func (t *NAVRefreshTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopChan != nil {
		return
	}

	t.stopChan = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stopChan, t.done)

	t.logger.WithField("interval", t.interval.String()).Info("nav refresh task started")
}

// Stop terminates the refresh loop and waits for an active run to return
func (t *NAVRefreshTask) Stop() {
	t.mu.Lock()
	stop, done := t.stopChan, t.done
	t.stopChan, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	t.logger.Info("nav refresh task stopped")
}

func (t *NAVRefreshTask) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.runOnce(ctx)
		case <-stop:
			return
		}
	}
}

func (t *NAVRefreshTask) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.runner.Run(runCtx)
	switch {
	case errors.Is(err, services.ErrRefreshInProgress):
		t.logger.Info("nav refresh already running, skipping tick")
	case err != nil:
		t.logger.WithError(err).Warn("scheduled nav refresh failed")
	default:
		t.logger.WithField("message", result.Message).Debug("scheduled nav refresh done")
	}
}
