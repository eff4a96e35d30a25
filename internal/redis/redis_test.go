package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := zerolog.Nop()
	return NewFromClient(rdb, "test:", &log), mr
}

func TestIdempotencyLifecycle(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	cached, err := c.CheckAndSetIdempotency(ctx, "checkout-1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, cached)

	_, err = c.CheckAndSetIdempotency(ctx, "checkout-1", time.Minute)
	assert.ErrorIs(t, err, ErrKeyExists)

	require.NoError(t, c.MarkIdempotencyComplete(ctx, "checkout-1", []byte(`{"ok":true}`), time.Minute))
	cached, err = c.CheckAndSetIdempotency(ctx, "checkout-1", time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(cached))
}

func TestIdempotencyFailedReleasesKey(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.CheckAndSetIdempotency(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.MarkIdempotencyFailed(ctx, "k"))

	cached, err := c.CheckAndSetIdempotency(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	lock, err := c.AcquireLock(ctx, "wallet:1", time.Second)
	require.NoError(t, err)

	_, err = c.AcquireLock(ctx, "wallet:1", time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	_, err = c.AcquireLockWait(ctx, "wallet:1", time.Second, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lock.Release(ctx))
	again, err := c.AcquireLockWait(ctx, "wallet:1", time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLockReleaseDoesNotDropForeignLock(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	stale, err := c.AcquireLock(ctx, "wallet:2", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := c.AcquireLock(ctx, "wallet:2", time.Second)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("test:lock:wallet:2"))
	require.NoError(t, fresh.Release(ctx))
}

func TestSimpleRateLimit(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SimpleRateLimit(ctx, "click:abc", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("test:ratelimit:click:abc"))

	ok, err = c.SimpleRateLimit(ctx, "click:abc", 1, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckRateLimit(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := c.CheckRateLimit(ctx, "ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(2-i), res.Remaining)
	}
	res, err := c.CheckRateLimit(ctx, "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.WithinDuration(t, time.Now().Add(time.Minute), res.ResetAt, 5*time.Second)
}
