package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const maxRetryDelay = 30 * time.Second

// RetryPolicy is an exponential backoff: BaseDelay doubles after each failed
// attempt, capped at 30s.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// retry runs fn until it succeeds, retries are exhausted or ctx is done.
func retry[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := policy.BaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= maxRetries || ctx.Err() != nil {
			return v, err
		}
		logger.Warn("retrying", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
