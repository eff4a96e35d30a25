package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/internal/response"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{redis: rdb}
}

// Limit allows limit requests per window per caller. Callers are keyed by
// user id when authenticated, by client IP otherwise. Redis errors fail open.
func (rl *RateLimiter) Limit(name string, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil || rl.redis == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := name + ":ip:" + clientIP(r)
			if id, ok := IdentityFrom(r.Context()); ok {
				key = name + ":user:" + id.UserID.String()
			}

			res, err := rl.redis.CheckRateLimit(r.Context(), key, limit, window)
			if err != nil {
				GetLogger(r.Context()).Error().Err(err).Msg("rate limit check failed")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				response.Error(w, r, apperror.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP is the caller address used for rate limits and click dedupe.
func ClientIP(r *http.Request) string {
	return clientIP(r)
}
