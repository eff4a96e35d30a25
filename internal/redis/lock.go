package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock already held")

// Lock represents a distributed lock
type Lock struct {
	client *Client
	key    string
	value  string
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// AcquireLock attempts to acquire a distributed lock once.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	prefixedKey := c.prefixKey("lock:" + key)
	value := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, prefixedKey, value, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &Lock{
		client: c,
		key:    prefixedKey,
		value:  value,
	}, nil
}

// AcquireLockWait retries AcquireLock until it succeeds, wait elapses or ctx is done.
func (c *Client) AcquireLockWait(ctx context.Context, key string, ttl, wait time.Duration) (*Lock, error) {
	deadline := time.Now().Add(wait)
	backoff := 20 * time.Millisecond
	for {
		lock, err := c.AcquireLock(ctx, key, ttl)
		if !errors.Is(err, ErrLockHeld) {
			return lock, err
		}
		if time.Now().Add(backoff).After(deadline) {
			return nil, ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

// Release releases the lock if it is still held by the owner
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.value).Err()
}
