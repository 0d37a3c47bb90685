package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/turtacn/ClaimLens/pkg/errors"
	"github.com/turtacn/ClaimLens/pkg/types/common"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per key.
	RequestsPerSecond float64
	// Burst is the bucket size. Defaults to twice the rate, at least 1.
	Burst int
	// KeyFunc extracts the limiting key. Defaults to the client IP.
	KeyFunc func(r *http.Request) string
	// SkipPaths bypass limiting.
	SkipPaths []string
	// IdleTTL drops the limiter of a key that has been quiet this long.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
		IdleTTL:           10 * time.Minute,
	}
}

// KeyedLimiter hands out one token bucket per key. Buckets of idle keys
// expire so the set does not grow without bound.
type KeyedLimiter struct {
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	limiters *gocache.Cache
}

func NewKeyedLimiter(requestsPerSecond float64, burst int, idleTTL time.Duration) *KeyedLimiter {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(requestsPerSecond*2)))
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
		idleTTL:  idleTTL,
		limiters: gocache.New(idleTTL, idleTTL),
	}
}

// Allow reports whether a request for key may proceed now. When it may not,
// retryAfter is how long until a token is available.
func (l *KeyedLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	lim := l.get(key)
	res := lim.Reserve()
	if !res.OK() {
		return false, time.Second
	}
	if d := res.Delay(); d > 0 {
		res.Cancel()
		return false, d
	}
	return true, 0
}

func (l *KeyedLimiter) Burst() int { return l.burst }

// Len is the number of keys with a live bucket.
func (l *KeyedLimiter) Len() int { return l.limiters.ItemCount() }

func (l *KeyedLimiter) get(key string) *rate.Limiter {
	if v, found := l.limiters.Get(key); found {
		lim := v.(*rate.Limiter)
		l.limiters.Set(key, lim, l.idleTTL)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	// Add fails when another request created the bucket first; use theirs.
	if err := l.limiters.Add(key, lim, l.idleTTL); err != nil {
		if v, found := l.limiters.Get(key); found {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// RateLimit rejects requests over the per-key rate with 429 and Retry-After.
// A non-positive rate disables the middleware.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := NewKeyedLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.IdleTTL)
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))

			ok, wait := limiter.Allow(keyFunc(r))
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeTooManyRequests(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the first X-Forwarded-For hop, then X-Real-IP, then the peer
// address without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request) {
	code := errors.ErrCodeTooManyRequests
	resp := common.NewErrorResponse(code.String(), errors.DefaultMessageForCode(code), "")
	resp.RequestID = common.RequestIDFrom(r.Context())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(resp)
}
