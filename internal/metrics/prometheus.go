package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "circuit_name"},
	)

	// CircuitBreakerFailures tracks calls that failed or were rejected by the breaker
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"service", "circuit_name"},
	)

	// BulkheadActiveRequests tracks active requests in bulkhead
	BulkheadActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkhead_active_requests",
			Help: "Number of active requests in bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// BulkheadRejectedRequests tracks rejected requests by bulkhead
	BulkheadRejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_rejected_requests_total",
			Help: "Total number of rejected requests by bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// RateLimiterRejectedRequests tracks calls refused by a rate limiter
	RateLimiterRejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_rejected_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"service", "limiter_name"},
	)

	// TimeoutsTotal tracks calls cancelled by a time limiter
	TimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "time_limiter_timeouts_total",
			Help: "Total number of calls cancelled after exceeding their time limit",
		},
		[]string{"service", "limiter_name"},
	)

	// RetryAttempts tracks retry outcomes (retried, exhausted, succeeded_after_retry)
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts by outcome",
		},
		[]string{"service", "retry_name", "outcome"},
	)

	// OrdersTotal tracks total orders by status
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Total number of orders",
		},
		[]string{"status"},
	)

	// FallbackResponses tracks fallback responses by failure origin
	FallbackResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_responses_total",
			Help: "Total number of fallback responses by failure origin",
		},
		[]string{"origin"},
	)

	// PricingDuration tracks product price lookups
	PricingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_lookup_duration_seconds",
			Help:    "Product price lookup duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// ChaosFailureRate tracks chaos engineering failure simulations
	ChaosFailureRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaos_failure_enabled",
			Help: "Whether chaos failure mode is enabled (1=enabled, 0=disabled)",
		},
		[]string{"service"},
	)

	// ChaosSlowMode tracks slow response simulation
	ChaosSlowMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaos_slow_mode_enabled",
			Help: "Whether chaos slow mode is enabled (1=enabled, 0=disabled)",
		},
		[]string{"service"},
	)
)

// PrometheusMiddleware creates a Gin middleware for automatic metrics collection
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()

		RequestDuration.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}
