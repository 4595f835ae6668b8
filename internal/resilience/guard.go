package resilience

import "context"

// Guard combines a circuit breaker and a retry policy for one provider.
// The breaker sees the outcome after retries are exhausted.
type Guard struct {
	breaker *CircuitBreaker
	retry   RetryConfig
}

// NewGuard returns a guard. A nil breaker disables circuit breaking.
func NewGuard(breaker *CircuitBreaker, retry RetryConfig) *Guard {
	return &Guard{breaker: breaker, retry: retry}
}

// Call runs fn under the guard.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := func(ctx context.Context) (T, error) {
		return DoVal(ctx, g.retry, fn)
	}
	if g.breaker == nil {
		return attempt(ctx)
	}
	return ExecuteVal(ctx, g.breaker, attempt)
}
