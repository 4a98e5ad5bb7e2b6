package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// rateLimitCapacity bounds how many principals are tracked at once; the
// least recently seen are dropped first.
const rateLimitCapacity = 10000

type bucket struct {
	count int
	until time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	buckets *expirable.LRU[string, *bucket]
}

func newRateLimiter(limit int, per time.Duration, capacity int) *rateLimiter {
	return &rateLimiter{
		limit: limit,
		per:   per,
		// entries expire with their window
		buckets: expirable.NewLRU[string, *bucket](capacity, nil, per),
	}
}

// allow counts one request for key and, when the window is exhausted, returns
// the time left until it resets.
func (l *rateLimiter) allow(key string, now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets.Get(key)
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(l.per)}
		l.buckets.Add(key, b)
	}
	if b.count >= l.limit {
		return b.until.Sub(now), false
	}
	b.count++
	return 0, true
}

// RateLimit allows limit requests per window for each principal, or for each
// client IP on unauthenticated requests.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	limiter := newRateLimiter(limit, per, rateLimitCapacity)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wait, ok := limiter.allow(rateLimitKey(r), time.Now())
			if !ok {
				retry := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests", "code": "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if uid := UserIDFromContext(r.Context()); uid != "" {
		return "user:" + uid
	}
	return "ip:" + clientIPForRateLimit(r)
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
