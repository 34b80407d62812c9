package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gatehouse-io/gatehouse/pkg/httputil"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
)

// RateLimitConfig bounds requests per client IP in a fixed window
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RateLimiter is a Redis-backed fixed-window limiter shared across
// instances. Intended for the credential endpoints, where unbounded retries
// enable password spraying.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	prefix string
	logger *observability.Logger
}

// NewRateLimiter creates a distributed rate limiter
func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig, prefix string, logger *observability.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
		logger: logger,
	}
}

// Limit wraps a handler with the limiter. Redis unavailability fails open:
// blocking all logins because the limiter store is down is the worse
// failure mode.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := fmt.Sprintf("%s:%s:%d",
			rl.prefix, clientIP(r), time.Now().Unix()/int64(rl.config.Window.Seconds()))

		pipe := rl.redis.Pipeline()
		count := pipe.Incr(r.Context(), key)
		pipe.Expire(r.Context(), key, rl.config.Window)
		if _, err := pipe.Exec(r.Context()); err != nil {
			rl.logger.WithError(err).Warn("rate limiter unavailable, failing open")
			next.ServeHTTP(w, r)
			return
		}

		if count.Val() > int64(rl.config.Requests) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.config.Window.Seconds())))
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
