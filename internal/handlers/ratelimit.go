package handlers

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/taskflow/apiserver/config"
	"github.com/taskflow/apiserver/internal/logging"
	"golang.org/x/time/rate"
)

const (
	msgTooManyRequests = "too many requests, please try again later"
	limiterIdleSweep   = 5 * time.Minute
)

// KeyExtractor groups requests for rate limiting.
type KeyExtractor func(*http.Request) string

// RemoteAddrKeyExtractor keys requests by the connection's peer address.
// Forwarding headers are ignored; put chi's RealIP in front of the limiter
// only when a trusted proxy sets them.
func RemoteAddrKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type rateLimiter struct {
	limiters  sync.Map // map[string]*rate.Limiter
	rate      rate.Limit
	burst     int
	mu        sync.Mutex
	lastSweep time.Time
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.rate, rl.burst))
	rl.sweep()
	return actual.(*rate.Limiter)
}

// sweep drops limiters whose bucket has refilled, i.e. idle clients.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastSweep) < limiterIdleSweep {
		return
	}
	rl.lastSweep = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit allows cfg.Requests per cfg.Window for each key, answering 429
// with Retry-After once the bucket is empty. A non-positive limit disables it.
func RateLimit(cfg config.RateLimitConfig, key KeyExtractor) func(http.Handler) http.Handler {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	rl := &rateLimiter{
		rate:      rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:     cfg.Requests,
		lastSweep: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.get(k)
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				retryAfter := max(int(reservation.Delay().Seconds()), 1)
				reservation.Cancel()

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
				w.Header().Set("X-RateLimit-Window", cfg.Window.String())

				logging.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", k,
					"path", r.URL.Path,
					"retry_after", retryAfter,
				)
				writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
