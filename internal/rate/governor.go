// Package rate computes inter-request pacing for each source.
//
// The governor is advisory timing only — it never blocks admission (that is
// the quota tracker's job). Callers ask for a delay, sleep it out, then run
// the admission check.
package rate

import (
	"math/rand"
	"sync"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/model"
)

// Governor tracks per-source last-request times and hands out jittered
// delays. Safe for concurrent use.
type Governor struct {
	mu   sync.Mutex
	last map[string]time.Time

	minSpacing time.Duration // global floor between any two requests

	now func() time.Time
}

// NewGovernor builds a Governor with the given global minimum spacing.
func NewGovernor(minSpacing time.Duration) *Governor {
	return &Governor{
		last:       make(map[string]time.Time),
		minSpacing: minSpacing,
		now:        time.Now,
	}
}

// DelayBeforeNext returns how long the caller must wait before issuing the
// next request to src. The result is the largest of:
//
//   - the global minimum spacing with ±30% jitter (breaks periodicity),
//   - the remainder of the per-source minimum spacing since the last
//     request to this exact source,
//   - a uniform draw from [src.MinDelay, src.MaxDelay].
//
// The source's slot is booked at now+delay, so concurrent workers hitting
// the same source space out rather than stampede. The returned delay never
// exceeds max(jittered spacing, src.MaxDelay) plus any backlog already
// booked for the source.
func (g *Governor) DelayBeforeNext(src model.Source) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	delay := jitter(g.minSpacing, 0.7, 1.3)

	if last, ok := g.last[src.Name]; ok {
		if remaining := src.MinDelay - now.Sub(last); remaining > delay {
			delay = remaining
		}
	}

	if ranged := uniform(src.MinDelay, src.MaxDelay); ranged > delay {
		delay = ranged
	}

	g.last[src.Name] = now.Add(delay)
	return delay
}

// jitter scales d by a uniform factor in [lo, hi].
func jitter(d time.Duration, lo, hi float64) time.Duration {
	if d <= 0 {
		return 0
	}
	f := lo + rand.Float64()*(hi-lo)
	return time.Duration(float64(d) * f)
}

// uniform draws from [lo, hi].
func uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}
