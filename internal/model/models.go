// Package model defines shared data structures for the collection service.
package model

import (
	"sync/atomic"
	"time"
)

// Source describes one external job board with its quota and pacing rules.
// Usage counters live in the quota package; Source itself is immutable
// configuration.
type Source struct {
	Name          string        `json:"name"`
	DailyLimit    int           `json:"dailyLimit"`
	HourlyLimit   int           `json:"hourlyLimit"`
	MinDelay      time.Duration `json:"minDelay"`
	MaxDelay      time.Duration `json:"maxDelay"`
	Priority      int           `json:"priority"` // lower = preferred
	RequiresProxy bool          `json:"requiresProxy"`
}

// Combination is the atomic unit of scheduling work: one source queried
// for one search term in one location.
type Combination struct {
	Source   Source
	Term     string
	Location string
}

// Key returns the deterministic checkpoint key for this combination
// within the given epoch (a YYYY-MM-DD date string).
func (c Combination) Key(epoch string) string {
	return c.Source.Name + "|" + c.Term + "|" + c.Location + "|" + epoch
}

// Posting is one normalised job offer fetched from an external board.
type Posting struct {
	Fingerprint    string    `json:"fingerprint"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Location       string    `json:"location"`
	Description    string    `json:"description"`
	SalaryText     string    `json:"salaryText,omitempty"`
	URL            string    `json:"url"`
	PostedAt       string    `json:"postedAt,omitempty"`
	Remote         bool      `json:"remote"`
	Source         string    `json:"source"`
	SearchTerm     string    `json:"searchTerm"`
	SearchLocation string    `json:"searchLocation"`
	CollectedAt    time.Time `json:"collectedAt"`
	BatchID        string    `json:"batchId,omitempty"`
}

// Checkpoint records which combinations finished in the current epoch so a
// restarted run can skip them. It is a resume optimisation, not a
// correctness guarantee — the deduplicator still prevents double storage.
type Checkpoint struct {
	Epoch     string
	Completed map[string]struct{}
	UpdatedAt time.Time
	BatchID   string
}

// NewCheckpoint returns an empty checkpoint for the given epoch.
func NewCheckpoint(epoch string) *Checkpoint {
	return &Checkpoint{Epoch: epoch, Completed: make(map[string]struct{})}
}

// Done reports whether the combination key already completed this epoch.
func (c *Checkpoint) Done(key string) bool {
	_, ok := c.Completed[key]
	return ok
}

// MarkDone records the combination key as completed.
func (c *Checkpoint) MarkDone(key string, at time.Time) {
	c.Completed[key] = struct{}{}
	c.UpdatedAt = at
}

// Severity classifies an Alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is an append-only health signal. Its identity is (Type, Date):
// re-evaluating the same condition within the same date must not create a
// second row.
type Alert struct {
	Type      string         `json:"type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Date      string         `json:"date"` // identity component, YYYY-MM-DD (plus hour for liveness)
	CreatedAt time.Time      `json:"createdAt"`
	Resolved  bool           `json:"resolved"`
}

// AlertThresholds configures the health monitor's breach checks.
type AlertThresholds struct {
	MinDailyJobs              int     `json:"minDailyJobs"`
	MaxMissingCompanyRate     float64 `json:"maxMissingCompanyRate"`
	MaxErrorRate              float64 `json:"maxErrorRate"`
	MaxDuplicateRate          float64 `json:"maxDuplicateRate"`
	MaxHoursWithoutCollection int     `json:"maxHoursWithoutCollection"`
}

// RunStats aggregates counters for a single collection run. Fields are
// atomic because worker goroutines update them concurrently.
type RunStats struct {
	Found      atomic.Int64
	Stored     atomic.Int64
	Duplicates atomic.Int64
	Errors     atomic.Int64
	Deferred   atomic.Int64
	Completed  atomic.Int64
	Skipped    atomic.Int64
}

// Summary is an immutable snapshot of RunStats for logging and reporting.
type Summary struct {
	Found      int64 `json:"found"`
	Stored     int64 `json:"stored"`
	Duplicates int64 `json:"duplicates"`
	Errors     int64 `json:"errors"`
	Deferred   int64 `json:"deferred"`
	Completed  int64 `json:"completed"`
	Skipped    int64 `json:"skipped"`
}

// Snapshot returns the current counter values.
func (s *RunStats) Snapshot() Summary {
	return Summary{
		Found:      s.Found.Load(),
		Stored:     s.Stored.Load(),
		Duplicates: s.Duplicates.Load(),
		Errors:     s.Errors.Load(),
		Deferred:   s.Deferred.Load(),
		Completed:  s.Completed.Load(),
		Skipped:    s.Skipped.Load(),
	}
}
