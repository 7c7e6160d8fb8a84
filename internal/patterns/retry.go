package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-service/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// RetrySettings configures a Retry policy
type RetrySettings struct {
	// MaxAttempts is the total number of calls, the first one included
	MaxAttempts int
	// Wait is the pause before the first retry
	Wait time.Duration
	// Multiplier grows the pause after every retry; values below 1 keep it constant
	Multiplier float64
	// RetryOn decides whether a failure is transient. Nil retries only ErrTimedOut.
	RetryOn func(err error) bool
}

// Retry re-invokes a failed operation while its failures are transient
type Retry struct {
	settings RetrySettings
	sleep    func(ctx context.Context, d time.Duration) error
	name     string
	service  string
}

// NewRetry creates a retry policy
func NewRetry(settings RetrySettings, name, service string) *Retry {
	if settings.MaxAttempts < 1 {
		settings.MaxAttempts = 1
	}
	if settings.Multiplier < 1 {
		settings.Multiplier = 1
	}
	if settings.RetryOn == nil {
		settings.RetryOn = func(err error) bool { return errors.Is(err, ErrTimedOut) }
	}
	return &Retry{
		settings: settings,
		sleep:    sleepContext,
		name:     name,
		service:  service,
	}
}

// Execute calls op until it succeeds, fails permanently or the attempt budget
// runs out. An open circuit ends the loop immediately so retries are not spent
// against it. A transient failure that outlives the budget is reported as
// ErrRetryBudgetExhausted wrapping the last failure; with a single attempt the
// failure is returned as is.
func (r *Retry) Execute(ctx context.Context, op Operation) (interface{}, error) {
	wait := r.settings.Wait
	var lastErr error

	for attempt := 1; attempt <= r.settings.MaxAttempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				metrics.RetryAttempts.WithLabelValues(r.service, r.name, "succeeded_after_retry").Inc()
			}
			return value, nil
		}

		if errors.Is(err, ErrCircuitOpen) || !r.settings.RetryOn(err) {
			return nil, err
		}
		lastErr = err

		if attempt == r.settings.MaxAttempts {
			break
		}

		metrics.RetryAttempts.WithLabelValues(r.service, r.name, "retried").Inc()
		log.WithFields(log.Fields{
			"retry":   r.name,
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("Transient failure, retrying: ", err)

		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
		wait = time.Duration(float64(wait) * r.settings.Multiplier)
	}

	// Without a retry there is no budget to exhaust.
	if r.settings.MaxAttempts == 1 {
		return nil, lastErr
	}

	metrics.RetryAttempts.WithLabelValues(r.service, r.name, "exhausted").Inc()
	return nil, fmt.Errorf("retry %s: %w after %d attempts: %w", r.name, ErrRetryBudgetExhausted, r.settings.MaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
