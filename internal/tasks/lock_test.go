package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasavnish/mfbroker/internal/logging"
	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
)

const testLockKey = "mfb:lock:nav-refresh"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client, testLockKey, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(testLockKey))
	assert.Equal(t, time.Minute, mr.TTL(testLockKey))

	_, err = locker.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(testLockKey))

	release, err = locker.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignLease(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client, testLockKey, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)

	// Lease expired and another process took it.
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set(testLockKey, "someone-else"))

	require.NoError(t, release(ctx))
	value, err := mr.Get(testLockKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestNAVRefreshJob_HeldLockReportsInProgress(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set(testLockKey, "other-process"))

	f := newFixture(t)
	f.hold(t, 100001, 10, 10)
	feed := &stubFeed{records: []models.SchemeRecord{record(100001, 11, "14-Mar-2025")}}
	job := NewNAVRefreshJob(f.investments, feed, NewRedisLocker(client, testLockKey, time.Minute), nil, nil, logging.Discard())

	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, services.ErrRefreshInProgress)
	assert.Equal(t, StateIdle, job.State())
	assert.Equal(t, 0, feed.calls)
}

func TestNAVRefreshJob_ReleasesLockAfterRun(t *testing.T) {
	mr, client := newRedis(t)

	f := newFixture(t)
	f.hold(t, 100001, 10, 10)
	feed := &stubFeed{records: []models.SchemeRecord{record(100001, 11, "14-Mar-2025")}}
	job := NewNAVRefreshJob(f.investments, feed, NewRedisLocker(client, testLockKey, time.Minute), nil, nil, logging.Discard())

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, mr.Exists(testLockKey))

	_, err = job.Run(context.Background())
	require.NoError(t, err)
}
