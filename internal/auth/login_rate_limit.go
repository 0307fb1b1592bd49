package auth

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxAttempts   = 5
	defaultAttemptWindow = 15 * time.Minute
	defaultMaxTracked    = 5000
)

// LoginRateLimiter counts attempts per key inside a trailing window. The
// service keys it by identity; the HTTP middleware keys a separate instance
// by client IP.
type LoginRateLimiter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	hitsByKey map[string][]time.Time
	maxMemory int
	now       func() time.Time
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = defaultMaxAttempts
	}
	if window <= 0 {
		window = defaultAttemptWindow
	}

	return &LoginRateLimiter{
		maxHits:   maxHits,
		window:    window,
		hitsByKey: make(map[string][]time.Time),
		maxMemory: defaultMaxTracked,
		now:       time.Now,
	}
}

func (l *LoginRateLimiter) WithClock(now func() time.Time) *LoginRateLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// IsRateLimited records an attempt for key unless the key is already at
// capacity, in which case it reports true and records nothing.
func (l *LoginRateLimiter) IsRateLimited(key string) bool {
	limited, _ := l.Check(key)
	return limited
}

// Check is IsRateLimited plus the time until the oldest counted attempt
// leaves the window.
func (l *LoginRateLimiter) Check(key string) (bool, time.Duration) {
	allowed, retryAfter := l.allow(key, l.now())
	return !allowed, retryAfter
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limited, retryAfter := l.Check(clientIP(r))
		if limited {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Sweep drops keys with no attempt inside the window and returns how many
// were removed.
func (l *LoginRateLimiter) Sweep() int {
	threshold := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sweepLocked(threshold)
}

func (l *LoginRateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hitsByKey)
}

func (l *LoginRateLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitsByKey[key]
	filtered := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) >= l.maxHits {
		retryAfter := filtered[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.hitsByKey[key] = filtered
		return false, retryAfter
	}

	filtered = append(filtered, now)
	l.hitsByKey[key] = filtered

	if len(l.hitsByKey) > l.maxMemory {
		l.sweepLocked(threshold)
	}

	return true, 0
}

func (l *LoginRateLimiter) sweepLocked(threshold time.Time) int {
	removed := 0
	for key, value := range l.hitsByKey {
		if len(value) == 0 || !value[len(value)-1].After(threshold) {
			delete(l.hitsByKey, key)
			removed++
		}
	}
	return removed
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
