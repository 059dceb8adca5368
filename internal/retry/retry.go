// Package retry wraps a single fetch attempt with bounded
// exponential-backoff retry.
//
// Convention fixed here and relied on by callers: MaxRetries is the TOTAL
// try budget. With MaxRetries = 3, an operation that fails three times is
// exhausted even if a fourth try would have succeeded.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrExhausted wraps the last attempt error once the try budget is spent.
// Failures classified under it are transient: the combination is skipped
// for this run, never fatal to the scheduler.
var ErrExhausted = errors.New("retry budget exhausted")

// Controller retries an operation with exponential backoff and jitter.
type Controller struct {
	MaxRetries int           // total tries; values < 1 behave as 1
	Base       time.Duration // first backoff, doubled per attempt

	sleep func(ctx context.Context, d time.Duration) error
}

// NewController returns a Controller with the given try budget and base
// backoff.
func NewController(maxRetries int, base time.Duration) *Controller {
	return &Controller{MaxRetries: maxRetries, Base: base, sleep: sleepCtx}
}

// Do runs op until it succeeds or the try budget is spent. Between failed
// tries it sleeps Backoff(attempt); the sleep observes ctx, so cancellation
// aborts the wait immediately. The returned error matches
// errors.Is(err, ErrExhausted) when the budget ran out.
func (c *Controller) Do(ctx context.Context, op func(context.Context) error) error {
	tries := c.MaxRetries
	if tries < 1 {
		tries = 1
	}

	var lastErr error
	for attempt := 0; attempt < tries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.Backoff(attempt-1)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w after %d tries: %v", ErrExhausted, tries, lastErr)
}

// Backoff returns the delay applied after the given zero-based failed
// attempt: Base × 2^attempt × jitter drawn from [0.5, 1.5]. The doubling
// dominates the jitter range, so the delay is non-decreasing in
// expectation.
func (c *Controller) Backoff(attempt int) time.Duration {
	base := float64(c.Base) * float64(int64(1)<<uint(attempt))
	f := 0.5 + rand.Float64()
	return time.Duration(base * f)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
