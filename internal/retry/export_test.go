package retry

import (
	"context"
	"time"
)

// SetSleep replaces the backoff sleep so tests run instantly.
func (c *Controller) SetSleep(f func(ctx context.Context, d time.Duration) error) {
	c.sleep = f
}
