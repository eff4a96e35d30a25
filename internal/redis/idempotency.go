package redis

import (
	"context"
	"errors"
	"time"
)

// ErrKeyExists means another request with the same key is still in flight.
var ErrKeyExists = errors.New("idempotency key already exists")

const pendingMarker = "pending"

// CheckAndSetIdempotency claims key for a new request. It returns the cached
// response when the request already completed and ErrKeyExists while it is in flight.
func (c *Client) CheckAndSetIdempotency(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	prefixedKey := c.prefixKey("idempotency:" + key)

	set, err := c.rdb.SetNX(ctx, prefixedKey, pendingMarker, ttl).Result()
	if err != nil {
		return nil, err
	}
	if set {
		return nil, nil
	}

	val, err := c.rdb.Get(ctx, prefixedKey).Result()
	if err != nil {
		return nil, err
	}
	if val == pendingMarker {
		return nil, ErrKeyExists
	}
	return []byte(val), nil
}

// MarkIdempotencyComplete stores the response replayed for duplicates.
func (c *Client) MarkIdempotencyComplete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	prefixedKey := c.prefixKey("idempotency:" + key)

	return c.rdb.Set(ctx, prefixedKey, response, ttl).Err()
}

// MarkIdempotencyFailed releases the key so the client may retry.
func (c *Client) MarkIdempotencyFailed(ctx context.Context, key string) error {
	prefixedKey := c.prefixKey("idempotency:" + key)

	return c.rdb.Del(ctx, prefixedKey).Err()
}
