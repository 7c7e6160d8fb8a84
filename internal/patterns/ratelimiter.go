package patterns

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashendes/order-service/internal/metrics"
)

// RateLimiter admits at most limit calls per fixed window of length period.
// Windows are aligned to the limiter's creation time.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	period      time.Duration
	windowStart time.Time
	used        int
	nowFn       func() time.Time
	name        string
	service     string
}

// NewRateLimiter creates a fixed-window rate limiter
func NewRateLimiter(limit int, period time.Duration, name, service string) *RateLimiter {
	return newRateLimiter(limit, period, name, service, time.Now)
}

func newRateLimiter(limit int, period time.Duration, name, service string, nowFn func() time.Time) *RateLimiter {
	if period <= 0 {
		period = time.Second
	}
	return &RateLimiter{
		limit:       limit,
		period:      period,
		windowStart: nowFn(),
		nowFn:       nowFn,
		name:        name,
		service:     service,
	}
}

// Allow consumes one permit from the current window if any is left
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFn()
	if elapsed := now.Sub(r.windowStart); elapsed >= r.period {
		r.windowStart = r.windowStart.Add(elapsed / r.period * r.period)
		r.used = 0
	}

	if r.used >= r.limit {
		return false
	}
	r.used++
	return true
}

// Execute runs op if the current window still has a permit
func (r *RateLimiter) Execute(ctx context.Context, op Operation) (interface{}, error) {
	if !r.Allow() {
		metrics.RateLimiterRejectedRequests.WithLabelValues(r.service, r.name).Inc()
		return nil, fmt.Errorf("rate limiter %s: %d calls per %s: %w", r.name, r.limit, r.period, ErrRateLimited)
	}
	return op(ctx)
}
