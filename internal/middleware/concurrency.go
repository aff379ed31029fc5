package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/harliandi/go-imgresize/pkg/metrics"
)

// ConcurrencyLimiter caps the number of requests served at once
type ConcurrencyLimiter struct {
	semaphore chan struct{}
	active    atomic.Int32
	max       int
}

// NewConcurrencyLimiter creates a new concurrency limiter
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	if max < 1 {
		max = 1
	}
	return &ConcurrencyLimiter{
		semaphore: make(chan struct{}, max),
		max:       max,
	}
}

// Acquire tries to take a slot. Returns false if the limit is reached.
func (cl *ConcurrencyLimiter) Acquire() bool {
	select {
	case cl.semaphore <- struct{}{}:
		metrics.UpdateConcurrency(int(cl.active.Add(1)))
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire
func (cl *ConcurrencyLimiter) Release() {
	<-cl.semaphore
	metrics.UpdateConcurrency(int(cl.active.Add(-1)))
}

// Active returns the number of slots in use
func (cl *ConcurrencyLimiter) Active() int {
	return int(cl.active.Load())
}

// ConcurrencyLimit returns middleware that answers 503 once max requests are in flight
func ConcurrencyLimit(max int, l zerolog.Logger) func(http.Handler) http.Handler {
	cl := NewConcurrencyLimiter(max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.Acquire() {
				l.Warn().
					Str("request_id", RequestIDFromContext(r.Context())).
					Int("max", cl.max).
					Msg("concurrency limit reached")
				metrics.RecordConcurrencyLimitExceeded()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"Service busy, please try again"}`))
				return
			}

			defer cl.Release()
			next.ServeHTTP(w, r)
		})
	}
}
