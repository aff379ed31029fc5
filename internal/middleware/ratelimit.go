package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harliandi/go-imgresize/pkg/metrics"
)

// RateLimiter implements token bucket rate limiting per client IP
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*bucket
	rate   int           // tokens per second
	burst  int           // max burst size
	ttl    time.Duration // idle time before a bucket is dropped
	done   chan struct{}
	once   sync.Once
}

type bucket struct {
	tokens  float64
	lastRef time.Time
}

// NewRateLimiter creates a new rate limiter
// rate: requests per second allowed
// burst: maximum burst size (tokens can accumulate to this)
func NewRateLimiter(rate, burst int) *RateLimiter {
	rl := &RateLimiter{
		limits: make(map[string]*bucket),
		rate:   rate,
		burst:  burst,
		ttl:    5 * time.Minute,
		done:   make(chan struct{}),
	}

	// Start cleanup goroutine, stopped by Close
	go rl.cleanup()

	return rl
}

// Allow checks if a request from the given IP should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.limits[ip]
	now := time.Now()

	if !exists {
		b = &bucket{
			tokens:  float64(rl.burst) - 1, // Consume one token
			lastRef: now,
		}
		rl.limits[ip] = b
		return true
	}

	// Calculate tokens to add based on time passed
	elapsed := now.Sub(b.lastRef).Seconds()
	b.tokens += elapsed * float64(rl.rate)
	b.lastRef = now

	// Cap tokens at burst size
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}

	// Check if we have enough tokens
	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}

	return false
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// cleanup removes stale entries to prevent memory leaks
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}

		// Drop buckets idle for longer than ttl
		rl.mu.Lock()
		now := time.Now()
		for ip, b := range rl.limits {
			if now.Sub(b.lastRef) > rl.ttl {
				delete(rl.limits, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIP extracts the client IP from the request, without the port
func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for proxies/load balancers)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr, port removed
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ipPrefix keeps only the leading part of an IP for metric labels
func ipPrefix(ip string) string {
	// Extract first octet
	if idx := strings.Index(ip, "."); idx != -1 {
		return ip[:idx] + ".0.0.0"
	}
	// For IPv6, just return first part
	if idx := strings.Index(ip, ":"); idx != -1 {
		return ip[:idx] + ":"
	}
	return "unknown"
}

// RateLimit returns middleware that answers 429 when a client exceeds its budget
func RateLimit(rl *RateLimiter, l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !rl.Allow(ip) {
				l.Warn().
					Str("request_id", RequestIDFromContext(r.Context())).
					Str("ip", ip).
					Msg("rate limit exceeded")
				// Record metric for rate limit exceeded
				metrics.RecordRateLimitExceeded(ipPrefix(ip))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
