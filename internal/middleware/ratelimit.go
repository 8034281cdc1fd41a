package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitMiddleware applies a per-client sliding-window request limit.
type RateLimitMiddleware struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	history map[string][]time.Time
}

// NewRateLimitMiddleware creates a limiter allowing limit requests per
// client within the window.
func NewRateLimitMiddleware(limit int, window time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limit:   limit,
		window:  window,
		history: make(map[string][]time.Time),
	}
}

// Limit rejects requests over the configured rate with 429.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.allow(clientIP(r), time.Now()) {
			writeAuthError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) allow(client string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-m.window)
	recent := m.history[client][:0]
	for _, t := range m.history[client] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= m.limit {
		m.history[client] = recent
		return false
	}
	m.history[client] = append(recent, now)
	return true
}

// clientIP prefers proxy headers over the socket address.
func clientIP(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		return strings.TrimSpace(strings.Split(v, ",")[0])
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return v
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
