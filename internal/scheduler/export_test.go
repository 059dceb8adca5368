package scheduler

import (
	"context"
	"time"
)

// Test hooks: instant sleeps and a fixed clock keep runs deterministic.

func (s *Scheduler) SetSleep(f func(ctx context.Context, d time.Duration) error) { s.sleep = f }
func (s *Scheduler) SetNow(now func() time.Time)                                 { s.now = now }
