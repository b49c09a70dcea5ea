package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasavnish/mfbroker/internal/db/dbtest"
	"github.com/vikasavnish/mfbroker/internal/logging"
	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/observability"
	"github.com/vikasavnish/mfbroker/internal/services"
)

type stubFeed struct {
	mu      sync.Mutex
	records []models.SchemeRecord
	err     error
	calls   int
	block   chan struct{}
	entered chan struct{}
}

func (f *stubFeed) FetchAllOpenEnded(ctx context.Context, filters map[string]string) ([]models.SchemeRecord, error) {
	f.mu.Lock()
	f.calls++
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return f.records, f.err
}

func (f *stubFeed) FetchByFamily(ctx context.Context, family string) ([]models.SchemeRecord, error) {
	return nil, errors.New("not used")
}

func (f *stubFeed) FetchSchemeByCode(ctx context.Context, code int) (*models.SchemeRecord, error) {
	return nil, errors.New("not used")
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []models.Message
}

func (n *recordingNotifier) Broadcast(msg models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

type fixture struct {
	investments services.InvestmentService
	userID      string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	user, err := services.NewUserService(db).CreateUser(context.Background(), models.User{Email: "holder@example.com", PasswordHash: "x", IsVerified: true})
	require.NoError(t, err)
	return fixture{investments: services.NewInvestmentService(db), userID: user.ID}
}

func (f fixture) hold(t *testing.T, code int, units, nav float64) {
	t.Helper()
	_, err := f.investments.Create(context.Background(), f.userID, models.InvestmentCreateRequest{
		SchemeCode: code,
		SchemeName: "Scheme",
		Units:      units,
		NAV:        nav,
		Date:       models.DateTime(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		FundFamily: "Axis Mutual Fund",
	})
	require.NoError(t, err)
}

func (f fixture) get(t *testing.T, code int) models.Investment {
	t.Helper()
	inv, err := f.investments.GetBySchemeCode(context.Background(), f.userID, code)
	require.NoError(t, err)
	return inv
}

func record(code int, nav float64, date string) models.SchemeRecord {
	return models.SchemeRecord{
		SchemeCode:       code,
		SchemeName:       "Scheme",
		SchemeType:       models.OpenEndedSchemes,
		MutualFundFamily: "Axis Mutual Fund",
		Date:             date,
		NetAssetValue:    nav,
	}
}

func TestNAVRefreshJob_UpdatesEveryInvestment(t *testing.T) {
	f := newFixture(t)
	f.hold(t, 100001, 100, 10)
	f.hold(t, 100002, 12.5, 40)
	f.hold(t, 100003, 3, 7)

	feed := &stubFeed{records: []models.SchemeRecord{
		record(100001, 25.1234, "14-Mar-2025"),
		record(100002, 41.123456, "14-Mar-2025"),
		record(100003, 7.5, "13-Mar-2025"),
	}}
	notifier := &recordingNotifier{}
	job := NewNAVRefreshJob(f.investments, feed, nil, notifier, observability.NewMetrics(), logging.Discard())

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MessageRefreshSucceeded, result.Message)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, feed.calls)
	assert.Equal(t, StateCompleted, job.State())

	first := f.get(t, 100001)
	assert.Equal(t, 25.1234, first.NAV)
	assert.Equal(t, 2512.34, first.CurrentValue)
	assert.True(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC).Equal(first.Date))

	second := f.get(t, 100002)
	assert.Equal(t, 41.1235, second.NAV)
	assert.Equal(t, 514.0438, second.CurrentValue)

	third := f.get(t, 100003)
	assert.Equal(t, 22.5, third.CurrentValue)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, NAVsUpdatedEvent, notifier.messages[0].Type)
}

func TestNAVRefreshJob_SkipsUnknownSchemes(t *testing.T) {
	f := newFixture(t)
	f.hold(t, 100001, 10, 10)
	f.hold(t, 999999, 10, 10)

	feed := &stubFeed{records: []models.SchemeRecord{record(100001, 12, "14-Mar-2025")}}
	job := NewNAVRefreshJob(f.investments, feed, nil, nil, nil, logging.Discard())

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)

	assert.Equal(t, 120.0, f.get(t, 100001).CurrentValue)
	assert.Equal(t, 100.0, f.get(t, 999999).CurrentValue)
}

func TestNAVRefreshJob_ProviderFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.hold(t, 100001, 10, 10)

	feed := &stubFeed{err: errors.New("provider unavailable")}
	job := NewNAVRefreshJob(f.investments, feed, nil, nil, nil, logging.Discard())

	result, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, MessageRefreshFailed, result.Message)
	assert.Equal(t, StateFailed, job.State())

	inv := f.get(t, 100001)
	assert.Equal(t, 10.0, inv.NAV)
	assert.Equal(t, 100.0, inv.CurrentValue)
}

func TestNAVRefreshJob_BadRecordMidScanIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.hold(t, 100001, 10, 10)
	f.hold(t, 100002, 10, 10)
	f.hold(t, 100003, 10, 10)

	feed := &stubFeed{records: []models.SchemeRecord{
		record(100001, 11, "14-Mar-2025"),
		record(100002, 12, "2025-03-14"),
		record(100003, 13, "14-Mar-2025"),
	}}
	job := NewNAVRefreshJob(f.investments, feed, nil, nil, nil, logging.Discard())

	_, err := job.Run(context.Background())
	require.Error(t, err)

	for _, code := range []int{100001, 100002, 100003} {
		inv := f.get(t, code)
		assert.Equal(t, 10.0, inv.NAV, "scheme %d", code)
		assert.Equal(t, 100.0, inv.CurrentValue, "scheme %d", code)
	}
}

func TestNAVRefreshJob_RejectsNegativeNAV(t *testing.T) {
	f := newFixture(t)
	f.hold(t, 100001, 10, 10)

	feed := &stubFeed{records: []models.SchemeRecord{record(100001, -1, "14-Mar-2025")}}
	job := NewNAVRefreshJob(f.investments, feed, nil, nil, nil, logging.Discard())

	_, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 10.0, f.get(t, 100001).NAV)
}

func TestNAVRefreshJob_NoInvestmentsSkipsProvider(t *testing.T) {
	f := newFixture(t)
	feed := &stubFeed{err: errors.New("should not be called")}
	job := NewNAVRefreshJob(f.investments, feed, nil, nil, nil, logging.Discard())

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MessageRefreshSucceeded, result.Message)
	assert.Equal(t, 0, feed.calls)
}

func TestNAVRefreshJob_ConcurrentRunRejected(t *testing.T) {
	f := newFixture(t)
	f.hold(t, 100001, 10, 10)

	feed := &stubFeed{
		records: []models.SchemeRecord{record(100001, 11, "14-Mar-2025")},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	job := NewNAVRefreshJob(f.investments, feed, nil, nil, nil, logging.Discard())

	errs := make(chan error, 1)
	go func() {
		_, err := job.Run(context.Background())
		errs <- err
	}()

	<-feed.entered
	assert.Equal(t, StateRunning, job.State())

	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, services.ErrRefreshInProgress)

	close(feed.block)
	require.NoError(t, <-errs)
	assert.Equal(t, StateCompleted, job.State())
	assert.Equal(t, 110.0, f.get(t, 100001).CurrentValue)
}

func TestNAVRefreshJob_Status(t *testing.T) {
	f := newFixture(t)
	f.hold(t, 100001, 10, 10)
	feed := &stubFeed{records: []models.SchemeRecord{record(100001, 11, "14-Mar-2025")}}
	job := NewNAVRefreshJob(f.investments, feed, nil, nil, nil, logging.Discard())

	idle := job.Status()
	assert.Equal(t, "idle", idle.State)
	assert.Nil(t, idle.StartedAt)
	assert.Nil(t, idle.FinishedAt)
	raw, err := json.Marshal(idle)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "started_at")
	assert.NotContains(t, string(raw), "finished_at")

	_, err = job.Run(context.Background())
	require.NoError(t, err)

	status := job.Status()
	assert.Equal(t, "completed", status.State)
	assert.Equal(t, 1, status.Updated)
	require.NotNil(t, status.StartedAt)
	require.NotNil(t, status.FinishedAt)
	assert.False(t, status.FinishedAt.Before(*status.StartedAt))

	feed.mu.Lock()
	feed.err = errors.New("provider down")
	feed.mu.Unlock()
	_, err = job.Run(context.Background())
	require.Error(t, err)

	failed := job.Status()
	assert.Equal(t, "failed", failed.State)
	assert.Zero(t, failed.Updated)
	assert.Zero(t, failed.Skipped)
	require.NotNil(t, failed.FinishedAt)
}
