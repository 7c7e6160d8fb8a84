package patterns

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPolicy struct {
	name string
	log  *[]string
}

func (p recordingPolicy) Execute(ctx context.Context, op Operation) (interface{}, error) {
	*p.log = append(*p.log, p.name+":enter")
	value, err := op(ctx)
	*p.log = append(*p.log, p.name+":exit")
	return value, err
}

func TestChain_NestsOutermostFirst(t *testing.T) {
	var calls []string
	chain := NewChain(
		recordingPolicy{name: "retry", log: &calls},
		recordingPolicy{name: "breaker", log: &calls},
		recordingPolicy{name: "limiter", log: &calls},
	)

	value, err := chain.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls = append(calls, "op")
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, value)
	assert.Equal(t, []string{
		"retry:enter", "breaker:enter", "limiter:enter",
		"op",
		"limiter:exit", "breaker:exit", "retry:exit",
	}, calls)
}

func TestChain_EmptyChainRunsOperation(t *testing.T) {
	value, err := NewChain().Execute(context.Background(), succeeding)
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func newTestChain(limit int, bulkhead int, timeout time.Duration) (*Chain, *CircuitBreakerWrapper) {
	retry := NewRetry(RetrySettings{
		MaxAttempts: 3,
		RetryOn:     func(err error) bool { return errors.Is(err, ErrTimedOut) || errors.Is(err, errTransient) },
	}, "chain", "test-service")
	breaker := NewCircuitBreaker("chain", "test-service", CircuitBreakerSettings{
		FailureRatio: 0.5,
		MinRequests:  3,
		OpenTimeout:  time.Minute,
	})
	return NewChain(
		retry,
		breaker,
		NewRateLimiter(limit, time.Hour, "chain", "test-service"),
		NewTimeLimiter(timeout, "chain", "test-service"),
		NewBulkhead(bulkhead, 0, "chain", "test-service"),
	), breaker
}

func TestChain_RetryReentersRateLimiter(t *testing.T) {
	chain, _ := newTestChain(2, 5, time.Second)

	var calls int32
	_, err := chain.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errTransient
	})

	assert.ErrorIs(t, err, ErrRateLimited, "the third attempt is throttled by the limiter inside the retry")
	assert.False(t, errors.Is(err, ErrRetryBudgetExhausted))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestChain_TimeoutsExhaustRetryBudget(t *testing.T) {
	chain, _ := newTestChain(100, 5, 20*time.Millisecond)

	var calls int32
	_, err := chain.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestChain_OpenBreakerStopsRetries(t *testing.T) {
	chain, breaker := newTestChain(100, 5, time.Second)

	var calls int32
	_, err := chain.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errTransient
	})
	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.True(t, breaker.IsOpen())

	_, err = chain.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "no attempt reaches the operation while open")
}

func TestChain_BulkheadRejectsUnderConcurrency(t *testing.T) {
	chain, _ := newTestChain(100, 2, time.Second)
	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = chain.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
				entered.Done()
				<-release
				return "ok", nil
			})
		}()
	}
	entered.Wait()

	_, err := chain.Execute(context.Background(), succeeding)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	close(release)
	wg.Wait()
}
