package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/internal/reminder"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJobs struct {
	matureLimit int
	expireAge   time.Duration
	reminded    bool
	err         error
}

func (s *stubJobs) MatureDue(_ context.Context, limit int) (int, error) {
	s.matureLimit = limit
	return 3, s.err
}

func (s *stubJobs) Run(context.Context) (reminder.Result, error) {
	s.reminded = true
	return reminder.Result{Sent: 1}, s.err
}

func (s *stubJobs) ExpireStale(_ context.Context, maxAge time.Duration, _ int) (int, error) {
	s.expireAge = maxAge
	return 0, s.err
}

func schedulerConfig() *config.Config {
	return &config.Config{
		Xendit: config.XenditConfig{InvoiceDuration: 24 * time.Hour},
		Scheduler: config.SchedulerConfig{
			MaturationInterval: time.Hour,
			ReminderInterval:   15 * time.Minute,
			ExpiryInterval:     time.Hour,
			BatchSize:          50,
		},
	}
}

func TestBuildJobsRunsEveryService(t *testing.T) {
	stub := &stubJobs{}
	log := zerolog.Nop()

	jobs := buildJobs(schedulerConfig(), stub, stub, stub, &log)
	require.Len(t, jobs, 3)
	for _, j := range jobs {
		require.NoError(t, j.run(context.Background()), j.name)
	}

	assert.Equal(t, 50, stub.matureLimit)
	assert.Equal(t, 24*time.Hour, stub.expireAge)
	assert.True(t, stub.reminded)
}

func TestBuildJobsSkipsDisabled(t *testing.T) {
	cfg := schedulerConfig()
	cfg.Scheduler.ReminderInterval = 0
	stub := &stubJobs{}
	log := zerolog.Nop()

	jobs := buildJobs(cfg, stub, stub, stub, &log)

	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.NotEqual(t, "transactions.payment-reminders", j.name)
	}
}

func TestJobErrorsPropagate(t *testing.T) {
	stub := &stubJobs{err: errors.New("db down")}
	log := zerolog.Nop()

	for _, j := range buildJobs(schedulerConfig(), stub, stub, stub, &log) {
		assert.Error(t, j.run(context.Background()), j.name)
	}
}

func TestRedisLockerIsExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := zerolog.Nop()
	locker := &redisLocker{redis: redis.NewFromClient(rdb, "test:", &log), ttl: time.Minute}
	ctx := context.Background()

	lock, err := locker.Lock(ctx, "ledger.mature-due")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "ledger.mature-due")
	assert.ErrorIs(t, err, redis.ErrLockHeld)

	require.NoError(t, lock.Unlock(ctx))
	again, err := locker.Lock(ctx, "ledger.mature-due")
	require.NoError(t, err)
	require.NoError(t, again.Unlock(ctx))
}
