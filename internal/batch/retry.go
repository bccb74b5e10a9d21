package batch

import (
	"context"
	"time"
)

// RetryTask is a bounded-retry unit of work: one initial attempt plus up to
// MaxRetries retries with a fixed delay between attempts. The same shape
// backs bid submission, alert processing and notification dispatch.
type RetryTask struct {
	MaxRetries int
	Delay      time.Duration
}

// Run executes fn until it succeeds or retries are exhausted. It returns the
// number of retries performed (not counting the first attempt) and the last
// error, nil on success. Context cancellation stops further attempts.
func (t RetryTask) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= t.MaxRetries; attempt++ {
		if attempt > 0 && t.Delay > 0 {
			select {
			case <-time.After(t.Delay):
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			}
		}

		if err := ctx.Err(); err != nil {
			if attempt == 0 {
				return 0, err
			}
			return attempt - 1, err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
	}

	return t.MaxRetries, lastErr
}
