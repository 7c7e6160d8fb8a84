package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashendes/order-service/internal/orders"
	"github.com/ashendes/order-service/internal/patterns"
	log "github.com/sirupsen/logrus"
)

// Config holds the order service settings read from the environment
type Config struct {
	Port                  string
	ProductServiceURL     string
	ProductServiceTimeout time.Duration
	DatabaseURL           string
	KafkaBrokers          []string
	KafkaTopic            string
	LogLevel              log.Level
	Pipeline              orders.PipelineSettings
}

// Load reads the configuration from environment variables. Unset variables
// take their defaults; malformed ones are reported together.
func Load() (*Config, error) {
	p := &parser{}
	minRequests := p.integer("CB_MIN_REQUESTS", 5)

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		ProductServiceURL:     getEnv("PRODUCT_SERVICE_URL", "http://localhost:8081"),
		ProductServiceTimeout: p.duration("PRODUCT_SERVICE_TIMEOUT", patterns.DefaultTimeout),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		KafkaBrokers:          ParseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "orders"),
		LogLevel:              p.logLevel("LOG_LEVEL", log.InfoLevel),
		Pipeline: orders.PipelineSettings{
			Retry: patterns.RetrySettings{
				MaxAttempts: p.integer("RETRY_MAX_ATTEMPTS", 3),
				Wait:        p.duration("RETRY_WAIT", 500*time.Millisecond),
				Multiplier:  p.float("RETRY_BACKOFF_MULTIPLIER", 2),
			},
			CircuitBreaker: patterns.CircuitBreakerSettings{
				FailureRatio: p.float("CB_FAILURE_RATIO", 0.5),
				MinRequests:  uint32(max(minRequests, 0)),
				Interval:     p.duration("CB_INTERVAL", 10*time.Second),
				OpenTimeout:  p.duration("CB_OPEN_TIMEOUT", 10*time.Second),
			},
			RateLimit:       p.integer("RL_LIMIT_FOR_PERIOD", 10),
			RatePeriod:      p.duration("RL_REFRESH_PERIOD", time.Second),
			Timeout:         p.duration("TIMEOUT_DURATION", 2*time.Second),
			BulkheadSize:    p.integer("BULKHEAD_MAX_CONCURRENT", 10),
			BulkheadMaxWait: p.duration("BULKHEAD_MAX_WAIT", 0),
		},
	}

	p.check("RETRY_MAX_ATTEMPTS", cfg.Pipeline.Retry.MaxAttempts >= 1, "must be at least 1")
	p.check("CB_FAILURE_RATIO", cfg.Pipeline.CircuitBreaker.FailureRatio > 0 && cfg.Pipeline.CircuitBreaker.FailureRatio <= 1, "must be in (0, 1]")
	p.check("CB_MIN_REQUESTS", minRequests >= 1, "must be at least 1")
	p.check("RL_LIMIT_FOR_PERIOD", cfg.Pipeline.RateLimit >= 1, "must be at least 1")
	p.check("RL_REFRESH_PERIOD", cfg.Pipeline.RatePeriod > 0, "must be positive")
	p.check("TIMEOUT_DURATION", cfg.Pipeline.Timeout > 0, "must be positive")
	p.check("BULKHEAD_MAX_CONCURRENT", cfg.Pipeline.BulkheadSize >= 1, "must be at least 1")

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseList splits a comma separated value, dropping blanks
func ParseList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

type parser struct {
	errs []error
}

func (p *parser) integer(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return fallback
	}
	return value
}

func (p *parser) float(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a number", key, raw))
		return fallback
	}
	return value
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return fallback
	}
	if value < 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: must not be negative", key))
		return fallback
	}
	return value
}

func (p *parser) logLevel(key string, fallback log.Level) log.Level {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	level, err := log.ParseLevel(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return level
}

func (p *parser) check(key string, ok bool, message string) {
	if !ok {
		p.errs = append(p.errs, fmt.Errorf("%s: %s", key, message))
	}
}
