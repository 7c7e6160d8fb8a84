package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-service/internal/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerSettings configures a CircuitBreakerWrapper
type CircuitBreakerSettings struct {
	// FailureRatio trips the breaker once failures/requests reaches it
	FailureRatio float64
	// MinRequests is the number of calls needed before the ratio is evaluated
	MinRequests uint32
	// Interval is the closed-state window after which counts are cleared
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open before half-opening
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial calls allowed while half-open
	HalfOpenRequests uint32
	// IsExcluded picks errors that count neither as success nor as failure.
	// Nil excludes admission rejections and caller cancellation.
	IsExcluded func(err error) bool
}

// CircuitBreakerWrapper wraps gobreaker with metrics
type CircuitBreakerWrapper struct {
	*gobreaker.CircuitBreaker[interface{}]
	isExcluded func(err error) bool
	name       string
	service    string
}

// NewCircuitBreaker creates a new circuit breaker with Prometheus metrics
func NewCircuitBreaker(name, service string, settings CircuitBreakerSettings) *CircuitBreakerWrapper {
	isExcluded := settings.IsExcluded
	if isExcluded == nil {
		isExcluded = excludedByDefault
	}
	halfOpen := settings.HalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpen,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		// The ratio only covers calls that completed and were counted.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			completed := counts.TotalSuccesses + counts.TotalFailures
			if completed == 0 || completed < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(completed)
			return failureRatio >= settings.FailureRatio
		},
		IsExcluded: func(err error) bool {
			return err != nil && isExcluded(err)
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(service, cbName).Set(float64(stateValue(to)))

			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	})

	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)

	return &CircuitBreakerWrapper{
		CircuitBreaker: cb,
		isExcluded:     isExcluded,
		name:           name,
		service:        service,
	}
}

// Execute runs op through the circuit breaker. Calls rejected by an open or
// saturated half-open breaker fail with ErrCircuitOpen. Excluded errors leave
// the breaker's counts and state untouched, so a half-open trial rejected by
// an inner guard does not close the breaker.
func (cb *CircuitBreakerWrapper) Execute(ctx context.Context, op Operation) (interface{}, error) {
	result, err := cb.CircuitBreaker.Execute(func() (interface{}, error) {
		return op(ctx)
	})

	err = FormatError(cb.name, err)
	if err != nil && (errors.Is(err, ErrCircuitOpen) || !cb.isExcluded(err)) {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.service, cb.name).Inc()
	}

	return result, err
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreakerWrapper) GetState() string {
	return cb.State().String()
}

// GetStateValue returns numeric value for the state (0=closed, 1=open, 2=half-open)
func (cb *CircuitBreakerWrapper) GetStateValue() int {
	return stateValue(cb.State())
}

// IsOpen reports whether the breaker currently rejects every call
func (cb *CircuitBreakerWrapper) IsOpen() bool {
	return cb.State() == gobreaker.StateOpen
}

// FormatError maps gobreaker rejections onto ErrCircuitOpen
func FormatError(circuitName string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("circuit breaker %s: %w", circuitName, ErrCircuitOpen)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker %s: trial call in progress: %w", circuitName, ErrCircuitOpen)
	}
	return err
}

func stateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

// Rate limiter and bulkhead rejections say nothing about the health of the
// guarded work, and a caller that went away is not a failure either.
func excludedByDefault(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCapacityExceeded) || errors.Is(err, context.Canceled)
}
