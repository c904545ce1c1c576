package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter implements sliding window rate limiting in redis. A limiter
// without a client lets everything through.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter creates a limiter. client may be nil.
func NewRateLimiter(client *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{client: client, logger: logger.Named("ratelimit"), now: time.Now}
}

// Enabled reports whether a redis client backs the limiter.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.client != nil
}

// CheckAndIncrement records a hit on key and reports whether it is within
// limit for the window, with the remaining budget and the reset time.
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	now := rl.now()
	windowStart := now.Add(-window)

	start := time.Now()
	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart.UnixMilli(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, window*2)
	_, err := pipe.Exec(ctx)
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return true, limit, now.Add(window), fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := int(countCmd.Val())
	remaining := limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return count < limit, remaining, now.Add(window), nil
}

// Limit returns middleware allowing requests per window for each key.
func (rl *RateLimiter) Limit(endpoint string, requests int, window time.Duration, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !rl.Enabled() || requests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + endpoint + ":" + keyFunc(r)
			allowed, remaining, resetAt, err := rl.CheckAndIncrement(r.Context(), key, requests, window)
			if err != nil {
				// Fail open: a redis outage must not take the API down.
				rl.logger.Warn("rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
				rl.logger.Warn("rate limit exceeded",
					zap.String("endpoint", endpoint),
					zap.String("key", key))
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				fail(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ipKey keys on the client address. chi's RealIP middleware has already
// rewritten RemoteAddr from forwarding headers.
func ipKey(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + ip
}

// userKey keys on the authenticated user, falling back to the address.
func userKey(r *http.Request) string {
	if id := auth.UserID(r.Context()); id != "" {
		return "user:" + id
	}
	return ipKey(r)
}
