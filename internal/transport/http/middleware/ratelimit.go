package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"timesheets/internal/transport/http/api"
	"timesheets/internal/transport/http/shared"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	keyFn   RateLimitKeyFunc
	prefix  string
	clients map[string]*clientLimiter
	swept   time.Time
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

// WithScope separates the buckets of one limiter from another keyed the same
// way.
func WithScope(scope string) RateLimitOption {
	return func(rl *rateLimiter) {
		rl.prefix = scope + ":"
	}
}

// RateLimit allows limit requests per window for each key, refilling
// continuously. Keys default to the authenticated user, else the client ip.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return shared.ClientIP(r)
}

func newRateLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		clients: map[string]*clientLimiter{},
	}
}

func (rl *rateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if now.Sub(rl.swept) > idleLimiterTTL {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > idleLimiterTTL {
				delete(rl.clients, k)
			}
		}
		rl.swept = now
	}
	c, ok := rl.clients[key]
	if !ok {
		every := rl.window / time.Duration(rl.limit)
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Every(every), rl.limit)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 || rl.window <= 0 {
		return true
	}

	key := rl.keyFn(r)
	if key == "" {
		key = shared.ClientIP(r)
	}
	now := time.Now()
	limiter := rl.limiterFor(rl.prefix+key, now)
	allowed := limiter.AllowN(now, 1)

	remaining := int(math.Max(0, math.Floor(limiter.TokensAt(now))))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

	if allowed {
		return true
	}

	reservation := limiter.ReserveN(now, 1)
	wait := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(retryAfter))
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	slog.Warn("rate limit exceeded",
		"key", key,
		"path", r.URL.Path,
		"method", r.Method,
		"limit", rl.limit,
		"windowSec", int(rl.window.Seconds()),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}
