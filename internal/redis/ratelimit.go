package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the oldest request in the window expires.
	ResetAt time.Time
}

// slidingWindowScript trims the window, admits the request when there is room
// and returns {allowed, remaining, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window_ms)
	local count = redis.call("ZCARD", key)

	local allowed = 0
	if count < limit then
		redis.call("ZADD", key, now, ARGV[4])
		redis.call("PEXPIRE", key, window_ms)
		count = count + 1
		allowed = 1
	end

	local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
	local oldest_ms = now
	if oldest[2] then
		oldest_ms = tonumber(oldest[2])
	end
	return {allowed, limit - count, oldest_ms}
`)

// CheckRateLimit is a sliding window limiter keyed by caller, e.g. "checkout:ip:1.2.3.4".
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	res, err := slidingWindowScript.Run(ctx, c.rdb, []string{c.prefixKey("ratelimit:" + key)},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}

	return &RateLimitResult{
		Allowed:   res[0] == 1,
		Remaining: max(res[1], 0),
		ResetAt:   time.UnixMilli(res[2]).Add(window),
	}, nil
}

// SimpleRateLimit is a fixed window counter. With limit 1 it reports whether
// this is the first occurrence of key in the window.
func (c *Client) SimpleRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	k := c.prefixKey("ratelimit:" + key)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= limit, nil
}
