package patterns

import (
	"context"
	"fmt"
	"time"

	"github.com/ashendes/order-service/internal/metrics"
)

// Bulkhead implements the bulkhead pattern for resource isolation
type Bulkhead struct {
	semaphore chan struct{}
	maxWait   time.Duration
	name      string
	service   string
}

// NewBulkhead creates a bulkhead admitting at most size concurrent calls.
// A call that finds the bulkhead full waits up to maxWait for a slot; with a
// zero maxWait it is rejected at once.
func NewBulkhead(size int, maxWait time.Duration, name, service string) *Bulkhead {
	if size < 1 {
		size = 1
	}
	return &Bulkhead{
		semaphore: make(chan struct{}, size),
		maxWait:   maxWait,
		name:      name,
		service:   service,
	}
}

// Execute runs op within the bulkhead's resource limits
func (b *Bulkhead) Execute(ctx context.Context, op Operation) (interface{}, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}

	metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Inc()
	defer func() {
		<-b.semaphore
		metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Dec()
	}()

	return op(ctx)
}

// InFlight returns the number of calls currently holding a slot
func (b *Bulkhead) InFlight() int {
	return len(b.semaphore)
}

// GetName returns the bulkhead name
func (b *Bulkhead) GetName() string {
	return b.name
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.semaphore <- struct{}{}:
		return nil
	default:
	}

	if b.maxWait > 0 {
		timer := time.NewTimer(b.maxWait)
		defer timer.Stop()

		select {
		case b.semaphore <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
	return fmt.Errorf("bulkhead %s: %w", b.name, ErrCapacityExceeded)
}
