package orders

import (
	"errors"
	"time"

	"github.com/ashendes/order-service/internal/patterns"
	"github.com/ashendes/order-service/internal/pricing"
)

const (
	serviceName = "order-service"
	policyName  = "createOrder"
)

// PipelineSettings configures the policies guarding order creation
type PipelineSettings struct {
	Retry           patterns.RetrySettings
	CircuitBreaker  patterns.CircuitBreakerSettings
	RateLimit       int
	RatePeriod      time.Duration
	Timeout         time.Duration
	BulkheadSize    int
	BulkheadMaxWait time.Duration
}

// Pipeline is the policy chain around order creation:
// retry, circuit breaker, rate limiter, timeout and bulkhead, outermost first.
// Retries pass through every inner guard again.
type Pipeline struct {
	*patterns.Chain
	Breaker *patterns.CircuitBreakerWrapper
}

// NewPipeline builds the creation policy chain from settings
func NewPipeline(settings PipelineSettings) *Pipeline {
	retrySettings := settings.Retry
	if retrySettings.RetryOn == nil {
		retrySettings.RetryOn = IsTransient
	}

	breaker := patterns.NewCircuitBreaker(policyName, serviceName, settings.CircuitBreaker)

	return &Pipeline{
		Chain: patterns.NewChain(
			patterns.NewRetry(retrySettings, policyName, serviceName),
			breaker,
			patterns.NewRateLimiter(settings.RateLimit, settings.RatePeriod, policyName, serviceName),
			patterns.NewTimeLimiter(settings.Timeout, policyName, serviceName),
			patterns.NewBulkhead(settings.BulkheadSize, settings.BulkheadMaxWait, policyName, serviceName),
		),
		Breaker: breaker,
	}
}

// IsTransient reports whether a failed creation attempt is worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, patterns.ErrTimedOut) || errors.Is(err, pricing.ErrUpstreamUnavailable)
}
