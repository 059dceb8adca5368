package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/retry"
)

func instant(c *retry.Controller) *retry.Controller {
	c.SetSleep(func(context.Context, time.Duration) error { return nil })
	return c
}

// ── Success paths ──────────────────────────────────────────────────────────

func TestDo_FirstTrySucceeds(t *testing.T) {
	c := instant(retry.NewController(3, time.Millisecond))

	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RecoversWithinBudget(t *testing.T) {
	c := instant(retry.NewController(3, time.Millisecond))

	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do should succeed on the third try: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

// ── Exhaustion ─────────────────────────────────────────────────────────────

// The fixed off-by-one convention: MaxRetries is the total try budget.
// A fetcher that fails 3 times and would succeed on try 4 is exhausted
// under MaxRetries = 3.
func TestDo_FailsThriceSucceedsOnFourth_Exhausted(t *testing.T) {
	c := instant(retry.NewController(3, time.Millisecond))

	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		if calls >= 4 {
			return nil
		}
		return errors.New("blocked")
	})
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, budget of 3 must cap total tries", calls)
	}
}

func TestDo_BudgetOfOneNeverRetries(t *testing.T) {
	c := instant(retry.NewController(1, time.Millisecond))

	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// ── Cancellation ───────────────────────────────────────────────────────────

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := retry.NewController(5, time.Millisecond)
	c.SetSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	err := c.Do(ctx, func(context.Context) error { return errors.New("fail") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ── Backoff growth ─────────────────────────────────────────────────────────

func TestBackoff_WithinJitterBounds(t *testing.T) {
	c := retry.NewController(5, 100*time.Millisecond)

	for attempt := 0; attempt < 4; attempt++ {
		expected := 100 * time.Millisecond << uint(attempt)
		lo := expected / 2
		hi := expected + expected/2
		for i := 0; i < 50; i++ {
			d := c.Backoff(attempt)
			if d < lo || d > hi {
				t.Fatalf("Backoff(%d) = %v, want within [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestBackoff_NonDecreasingInExpectation(t *testing.T) {
	c := retry.NewController(5, 100*time.Millisecond)

	// Worst case of attempt n+1 (0.5 × 2^(n+1)) equals the expectation of
	// attempt n, so compare averaged samples rather than single draws.
	avg := func(attempt int) time.Duration {
		var sum time.Duration
		const n = 200
		for i := 0; i < n; i++ {
			sum += c.Backoff(attempt)
		}
		return sum / n
	}

	prev := avg(0)
	for attempt := 1; attempt < 4; attempt++ {
		cur := avg(attempt)
		if cur <= prev {
			t.Errorf("mean Backoff(%d)=%v not above mean Backoff(%d)=%v", attempt, cur, attempt-1, prev)
		}
		prev = cur
	}
}
