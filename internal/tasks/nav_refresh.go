package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/observability"
	"github.com/vikasavnish/mfbroker/internal/services"
)

const (
	MessageRefreshSucceeded = "All NAVs have been updated successfully."
	MessageRefreshFailed    = "Update not successful"

	// NAVsUpdatedEvent is the websocket message type sent after a successful run
	NAVsUpdatedEvent = "navs_updated"
)

// State is the lifecycle of the NAV refresh job
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Result is the coarse outcome reported to callers
type Result struct {
	Message string `json:"message"`
	Updated int    `json:"-"`
	Skipped int    `json:"-"`
}

// Status is a snapshot of the job for health reporting
type Status struct {
	State      string     `json:"state"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Updated    int        `json:"updated"`
	Skipped    int        `json:"skipped"`
}

// Runner runs one NAV refresh
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Notifier receives a message after every successful refresh
type Notifier interface {
	Broadcast(msg models.Message)
}

// NAVRefreshJob revalues every stored investment from the provider's latest
// NAV feed. A run is all-or-nothing and at most one run is active at a time.
type NAVRefreshJob struct {
	investments services.InvestmentService
	funds       services.FundSource
	locker      Locker
	notifier    Notifier
	metrics     *observability.Metrics
	logger      logrus.FieldLogger

	mu     sync.Mutex
	status Status
	state  State
}

// NewNAVRefreshJob creates the job. locker, notifier and metrics may be nil.
func NewNAVRefreshJob(
	investments services.InvestmentService,
	funds services.FundSource,
	locker Locker,
	notifier Notifier,
	metrics *observability.Metrics,
	logger logrus.FieldLogger,
) *NAVRefreshJob {
	return &NAVRefreshJob{
		investments: investments,
		funds:       funds,
		locker:      locker,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger.WithField("job", "nav_refresh"),
	}
}

// State returns the current lifecycle state
func (j *NAVRefreshJob) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Status returns a snapshot of the last or current run
func (j *NAVRefreshJob) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.status
	s.State = j.state.String()
	return s
}

// Run performs one refresh. It returns services.ErrRefreshInProgress when
// another run holds the job, here or in another process.
func (j *NAVRefreshJob) Run(ctx context.Context) (Result, error) {
	previous, ok := j.begin()
	if !ok {
		return Result{}, services.ErrRefreshInProgress
	}

	release, err := j.acquire(ctx)
	if err != nil {
		j.abort(previous)
		if errors.Is(err, ErrLockNotAcquired) {
			return Result{}, services.ErrRefreshInProgress
		}
		j.logger.WithError(err).Error("could not acquire refresh lock")
		return Result{Message: MessageRefreshFailed}, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			j.logger.WithError(err).Warn("could not release refresh lock")
		}
	}()

	start := time.Now()
	updated, skipped, err := j.refresh(ctx)
	j.finish(updated, skipped, err)
	j.metrics.ObserveRefresh(time.Since(start), updated, skipped, err)

	entry := j.logger.WithFields(logrus.Fields{
		"updated":  updated,
		"skipped":  skipped,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("nav refresh failed")
		return Result{Message: MessageRefreshFailed}, err
	}
	entry.Info("nav refresh completed")

	if j.notifier != nil {
		j.notifier.Broadcast(models.Message{
			Type:    NAVsUpdatedEvent,
			Content: map[string]int{"updated": updated, "skipped": skipped},
		})
	}
	return Result{Message: MessageRefreshSucceeded, Updated: updated, Skipped: skipped}, nil
}

func (j *NAVRefreshJob) begin() (State, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateRunning {
		return j.state, false
	}
	previous := j.state
	j.state = StateRunning
	return previous, true
}

func (j *NAVRefreshJob) abort(previous State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = previous
}

func (j *NAVRefreshJob) acquire(ctx context.Context) (func(context.Context) error, error) {
	if j.locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	return j.locker.Acquire(ctx)
}

func (j *NAVRefreshJob) finish(updated, skipped int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.status.FinishedAt = &now
	if err != nil {
		j.state = StateFailed
		j.status.Updated, j.status.Skipped = 0, 0
		return
	}
	j.state = StateCompleted
	j.status.Updated, j.status.Skipped = updated, skipped
}

// refresh stages a new valuation for every investment the provider knows and
// writes them in one transaction. Nothing is written if any step fails.
func (j *NAVRefreshJob) refresh(ctx context.Context) (updated, skipped int, err error) {
	started := time.Now()
	j.mu.Lock()
	j.status.StartedAt = &started
	j.status.FinishedAt = nil
	j.mu.Unlock()

	investments, err := j.investments.ListAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load investments: %w", err)
	}
	if len(investments) == 0 {
		return 0, 0, nil
	}

	records, err := j.funds.FetchAllOpenEnded(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch open-ended schemes: %w", err)
	}
	index := make(map[int]models.SchemeRecord, len(records))
	for _, r := range records {
		if _, ok := index[r.SchemeCode]; !ok {
			index[r.SchemeCode] = r
		}
	}

	staged := make([]models.Investment, 0, len(investments))
	for _, inv := range investments {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		record, ok := index[inv.SchemeCode]
		if !ok {
			skipped++
			j.logger.WithField("scheme_code", inv.SchemeCode).Debug("scheme not in provider feed")
			continue
		}

		navDate, err := record.NAVDate()
		if err != nil {
			return 0, 0, err
		}
		if record.NetAssetValue < 0 || math.IsNaN(record.NetAssetValue) || math.IsInf(record.NetAssetValue, 0) {
			return 0, 0, fmt.Errorf("scheme %d: invalid nav %v", record.SchemeCode, record.NetAssetValue)
		}

		inv.Revalue(record.NetAssetValue)
		inv.Date = navDate
		staged = append(staged, inv)
	}

	if err := j.investments.ApplyValuations(ctx, staged); err != nil {
		return 0, 0, err
	}
	return len(staged), skipped, nil
}
