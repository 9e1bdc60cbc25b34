package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type window struct {
	count int
	ends  time.Time
}

// IPRateLimiter is a fixed-window limiter keyed by client IP. It tracks at
// most maxEntries addresses; expired windows are evicted first and, if the
// table is still full, new addresses share the "overflow" bucket.
type IPRateLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	maxEntries int
	entries    map[string]window
	now        func() time.Time
}

func NewIPRateLimiter(limit int, per time.Duration) *IPRateLimiter {
	return NewIPRateLimiterWithMaxEntries(limit, per, 10000)
}

func NewIPRateLimiterWithMaxEntries(limit int, per time.Duration, maxEntries int) *IPRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if per <= 0 {
		per = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &IPRateLimiter{
		limit:      limit,
		window:     per,
		maxEntries: maxEntries,
		entries:    map[string]window{},
		now:        time.Now,
	}
}

func (rl *IPRateLimiter) Middleware(message string) func(http.Handler) http.Handler {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := rl.allow(clientIP(r.RemoteAddr))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
				writeError(w, r, http.StatusTooManyRequests, "rate_limited", message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *IPRateLimiter) allow(ip string) (bool, time.Duration) {
	if ip == "" {
		ip = "unknown"
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[ip]
	if !ok && len(rl.entries) >= rl.maxEntries {
		rl.evictExpired(now)
		if len(rl.entries) >= rl.maxEntries {
			ip = "overflow"
			entry = rl.entries[ip]
		}
	}
	if entry.ends.Before(now) {
		entry = window{ends: now.Add(rl.window)}
	}
	entry.count++
	rl.entries[ip] = entry

	if entry.count > rl.limit {
		return false, entry.ends.Sub(now)
	}
	return true, 0
}

func (rl *IPRateLimiter) evictExpired(now time.Time) {
	for ip, entry := range rl.entries {
		if entry.ends.Before(now) {
			delete(rl.entries, ip)
		}
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
