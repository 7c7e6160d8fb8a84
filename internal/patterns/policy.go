package patterns

import "context"

// Operation is a unit of work guarded by a Policy
type Operation func(ctx context.Context) (interface{}, error)

// Policy guards the execution of an Operation. It either runs the operation and
// returns its result or rejects the call with one of the errors in this package.
type Policy interface {
	Execute(ctx context.Context, op Operation) (interface{}, error)
}

// Chain nests policies around an operation. The first policy is the outermost
// guard, so it sees every failure of the policies after it.
type Chain struct {
	policies []Policy
}

// NewChain creates a chain from policies listed outermost first
func NewChain(policies ...Policy) *Chain {
	return &Chain{policies: policies}
}

// Execute runs op through every policy of the chain
func (c *Chain) Execute(ctx context.Context, op Operation) (interface{}, error) {
	wrapped := op
	for i := len(c.policies) - 1; i >= 0; i-- {
		policy, next := c.policies[i], wrapped
		wrapped = func(ctx context.Context) (interface{}, error) {
			return policy.Execute(ctx, next)
		}
	}
	return wrapped(ctx)
}
