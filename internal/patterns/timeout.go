package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-service/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout is the default timeout for HTTP requests
const DefaultTimeout = 3 * time.Second

// TimeLimiter bounds the wall-clock duration of one call
type TimeLimiter struct {
	duration time.Duration
	name     string
	service  string
}

// NewTimeLimiter creates a time limiter cancelling calls after duration
func NewTimeLimiter(duration time.Duration, name, service string) *TimeLimiter {
	if duration <= 0 {
		duration = DefaultTimeout
	}
	return &TimeLimiter{
		duration: duration,
		name:     name,
		service:  service,
	}
}

type callResult struct {
	value interface{}
	err   error
}

// Execute runs op on its own goroutine with a deadline. When the deadline passes
// the operation's context is cancelled and ErrTimedOut is returned without
// waiting for op to notice; its late result is discarded.
func (t *TimeLimiter) Execute(ctx context.Context, op Operation) (interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.duration)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		value, err := op(callCtx)
		done <- callResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && t.expired(ctx, callCtx) {
			return nil, t.timedOut()
		}
		return res.value, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, t.timedOut()
	}
}

// Duration returns the configured time limit
func (t *TimeLimiter) Duration() time.Duration {
	return t.duration
}

func (t *TimeLimiter) expired(parent, callCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded)
}

func (t *TimeLimiter) timedOut() error {
	metrics.TimeoutsTotal.WithLabelValues(t.service, t.name).Inc()
	log.WithFields(log.Fields{
		"limiter": t.name,
		"timeout": t.duration.String(),
	}).Warn("Call exceeded time limit and was cancelled")
	return fmt.Errorf("time limiter %s: exceeded %s: %w", t.name, t.duration, ErrTimedOut)
}
