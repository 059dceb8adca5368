// Package quota enforces per-source daily and hourly request budgets and
// temporary block windows after failures.
//
// Counters live behind a UsageStore so quota state can be shared across
// distributed collector runs (Redis) or kept per-process (memory). Windows
// are encoded into the counter keys, so epoch rollover is lazy: a new day
// simply reads a fresh key and old keys expire.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/model"
)

// UsageStore persists per-source counters and block windows.
type UsageStore interface {
	// Incr increments the counter for key and sets its expiry on first write.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Count returns the current value for key (0 when absent).
	Count(ctx context.Context, key string) (int64, error)
	// SetBlock suppresses the source for d.
	SetBlock(ctx context.Context, source string, d time.Duration) error
	// Blocked reports whether the source is inside a block window.
	Blocked(ctx context.Context, source string) (bool, error)
}

// Usage is the admission status for one source.
type Usage struct {
	Used      int64
	Limit     int64
	Remaining int64
}

// Tracker answers "can I call this source now?" and records consumption.
type Tracker struct {
	store    UsageStore
	sources  map[string]model.Source
	blockMin time.Duration
	blockMax time.Duration

	now func() time.Time
}

// NewTracker builds a Tracker over the given store. blockMin/blockMax bound
// the random suspension applied after a failed request.
func NewTracker(store UsageStore, sources []model.Source, blockMin, blockMax time.Duration) *Tracker {
	byName := make(map[string]model.Source, len(sources))
	for _, s := range sources {
		byName[s.Name] = s
	}
	return &Tracker{
		store:    store,
		sources:  byName,
		blockMin: blockMin,
		blockMax: blockMax,
		now:      time.Now,
	}
}

// CanAdmit reports whether a request to the source may proceed: both the
// daily and hourly counters must be under their limits and the source must
// not be inside a block window. Any store error denies admission — when
// usage state is unknown the tracker fails toward caution.
func (t *Tracker) CanAdmit(ctx context.Context, source string) bool {
	src, ok := t.sources[source]
	if !ok {
		return false
	}

	blocked, err := t.store.Blocked(ctx, source)
	if err != nil {
		slog.Warn("quota: block lookup failed, denying admission", "source", source, "err", err)
		return false
	}
	if blocked {
		return false
	}

	daily, err := t.store.Count(ctx, t.dailyKey(source))
	if err != nil {
		slog.Warn("quota: daily count failed, denying admission", "source", source, "err", err)
		return false
	}
	if daily >= int64(src.DailyLimit) {
		return false
	}

	hourly, err := t.store.Count(ctx, t.hourlyKey(source))
	if err != nil {
		slog.Warn("quota: hourly count failed, denying admission", "source", source, "err", err)
		return false
	}
	return hourly < int64(src.HourlyLimit)
}

// Consume charges one request against the source's daily and hourly
// counters. Callers charge at admission time, before the request runs, so
// concurrent in-flight requests can never push a source past its limit.
func (t *Tracker) Consume(ctx context.Context, source string) {
	if _, err := t.store.Incr(ctx, t.dailyKey(source), 48*time.Hour); err != nil {
		slog.Warn("quota: daily incr failed", "source", source, "err", err)
	}
	if _, err := t.store.Incr(ctx, t.hourlyKey(source), 2*time.Hour); err != nil {
		slog.Warn("quota: hourly incr failed", "source", source, "err", err)
	}
}

// Penalize opens a block window of random duration in [blockMin, blockMax]
// after a failed request. The quota already consumed for the attempt stays
// consumed.
func (t *Tracker) Penalize(ctx context.Context, source string) {
	d := t.blockMin
	if spread := t.blockMax - t.blockMin; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread)))
	}
	if err := t.store.SetBlock(ctx, source, d); err != nil {
		slog.Warn("quota: set block failed", "source", source, "err", err)
	}
}

// Status returns the daily usage for the source.
func (t *Tracker) Status(ctx context.Context, source string) (Usage, error) {
	src, ok := t.sources[source]
	if !ok {
		return Usage{}, fmt.Errorf("quota: unknown source %q", source)
	}
	used, err := t.store.Count(ctx, t.dailyKey(source))
	if err != nil {
		return Usage{}, fmt.Errorf("quota: count %s: %w", source, err)
	}
	remaining := int64(src.DailyLimit) - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{Used: used, Limit: int64(src.DailyLimit), Remaining: remaining}, nil
}

func (t *Tracker) dailyKey(source string) string {
	return fmt.Sprintf("%s:d:%s", source, t.now().Format("2006-01-02"))
}

func (t *Tracker) hourlyKey(source string) string {
	return fmt.Sprintf("%s:h:%s", source, t.now().Format("2006-01-02T15"))
}
