package patterns

import "errors"

// Rejections produced by the policies in this package. Policies wrap them with
// their own name, so callers should match with errors.Is.
var (
	ErrCircuitOpen          = errors.New("circuit breaker is open")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrCapacityExceeded     = errors.New("bulkhead capacity exceeded")
	ErrTimedOut             = errors.New("call timed out")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// IsRejection reports whether err is an admission rejection raised by a guard
// rather than a failure of the guarded work itself.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrCircuitOpen)
}
