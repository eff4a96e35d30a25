package main

import (
	"context"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/go-co-op/gocron/v2"
)

// redisLocker keeps scheduler replicas from running the same job at once.
type redisLocker struct {
	redis *redis.Client
	ttl   time.Duration
}

func (l *redisLocker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	lock, err := l.redis.AcquireLock(ctx, "job:"+key, l.ttl)
	if err != nil {
		return nil, err
	}
	return &jobLock{lock: lock}, nil
}

type jobLock struct {
	lock *redis.Lock
}

func (j *jobLock) Unlock(ctx context.Context) error {
	return j.lock.Release(ctx)
}
