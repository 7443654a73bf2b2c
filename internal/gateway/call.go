package gateway

import (
	"context"
	"fmt"
	"time"

	"borrow-service/internal/domain"
	"borrow-service/internal/logger"
	"borrow-service/internal/metrics"
)

// Capability is one breaker-protected remote operation together with its call policy.
type Capability struct {
	Breaker       *Breaker
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Call runs fn under the capability's breaker. While the breaker is open fn is not
// invoked and fallback is returned with a nil error. Otherwise fn runs detached
// from ctx cancellation, bounded by Timeout per attempt, and retried up to
// RetryAttempts times; the whole attempt sequence is one breaker outcome.
func Call[T any](ctx context.Context, c *Capability, fallback T, fn func(ctx context.Context) (T, error)) (T, error) {
	name := c.Breaker.Name()

	if !c.Breaker.Allow() {
		metrics.RecordGatewayCall(name, "fallback")
		logger.WarnContext(ctx, "Circuit breaker rejected call, using fallback", "capability", name)
		return fallback, nil
	}

	callCtx := context.WithoutCancel(ctx)
	attempts := c.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	runAttempt := func() (T, error) {
		if c.Timeout <= 0 {
			return fn(callCtx)
		}
		attemptCtx, cancel := context.WithTimeout(callCtx, c.Timeout)
		defer cancel()
		return fn(attemptCtx)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && c.RetryDelay > 0 {
			time.Sleep(c.RetryDelay)
		}

		result, err := runAttempt()

		if err == nil {
			c.Breaker.RecordSuccess()
			metrics.RecordGatewayCall(name, "success")
			return result, nil
		}
		lastErr = err
		logger.DebugContext(ctx, "Capability call attempt failed", "capability", name, "attempt", attempt, "error", err)
	}

	c.Breaker.RecordFailure()
	metrics.RecordGatewayCall(name, "failure")
	var zero T
	return zero, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, name, lastErr)
}
