// Package monitor evaluates collection health from stored postings:
// windowed metrics, threshold alerts and a daily report.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/model"
	"github.com/louiscollinsjr/getWork-run/internal/normalize"
)

// Reader is the slice of the repository the monitor queries.
type Reader interface {
	QueryRecent(ctx context.Context, since time.Time) ([]model.Posting, error)
}

// AlertSink persists alerts. Writes are idempotent per (type, date).
type AlertSink interface {
	AppendAlert(ctx context.Context, a model.Alert) error
}

// TermCount is one entry of the top-search-terms ranking.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Metrics summarizes collection quality over a time window.
type Metrics struct {
	Window        time.Duration  `json:"window"`
	TotalJobs     int            `json:"totalJobs"`
	BySource      map[string]int `json:"bySource"`
	CompanyRate   float64        `json:"companyRate"`   // share with a real company name
	ErrorRate     float64        `json:"errorRate"`     // share missing required fields
	DuplicateRate float64        `json:"duplicateRate"` // 1 - unique fingerprints / total
	TopTerms      []TermCount    `json:"topTerms"`
}

// Report is the daily summary printed by the monitor command.
type Report struct {
	Date            string        `json:"date"`
	Metrics         Metrics       `json:"metrics"`
	Alerts          []model.Alert `json:"alerts"`
	Recommendations []string      `json:"recommendations"`
}

// Monitor checks stored postings against the configured thresholds.
type Monitor struct {
	reader     Reader
	sink       AlertSink
	thresholds model.AlertThresholds

	now func() time.Time
}

// New wires a Monitor over the repository.
func New(reader Reader, sink AlertSink, t model.AlertThresholds) *Monitor {
	return &Monitor{reader: reader, sink: sink, thresholds: t, now: time.Now}
}

// CollectMetrics computes quality metrics over the trailing window.
func (m *Monitor) CollectMetrics(ctx context.Context, window time.Duration) (Metrics, error) {
	since := m.now().Add(-window)
	postings, err := m.reader.QueryRecent(ctx, since)
	if err != nil {
		return Metrics{}, fmt.Errorf("query recent postings: %w", err)
	}

	metrics := Metrics{Window: window, BySource: make(map[string]int)}
	if len(postings) == 0 {
		return metrics, nil
	}

	total := len(postings)
	metrics.TotalJobs = total

	withCompany := 0
	broken := 0
	fingerprints := make(map[string]struct{}, total)
	termCounts := make(map[string]int)

	for _, p := range postings {
		metrics.BySource[p.Source]++
		if p.Company != "" && p.Company != normalize.UnknownCompany {
			withCompany++
		}
		if p.Title == "" || p.URL == "" || p.Company == "" || p.Company == normalize.UnknownCompany {
			broken++
		}
		fingerprints[p.Fingerprint] = struct{}{}
		if p.SearchTerm != "" {
			termCounts[p.SearchTerm]++
		}
	}

	metrics.CompanyRate = float64(withCompany) / float64(total)
	metrics.ErrorRate = float64(broken) / float64(total)
	metrics.DuplicateRate = float64(total-len(fingerprints)) / float64(total)
	metrics.TopTerms = rankTerms(termCounts, 10)
	return metrics, nil
}

// CheckHealth evaluates the thresholds and persists one alert per breached
// condition. Alert identity is (type, date), so re-running the check within
// the same day never duplicates an alert; the liveness alert is keyed by
// date and hour instead, so a stalled collector keeps escalating.
func (m *Monitor) CheckHealth(ctx context.Context) ([]model.Alert, error) {
	metrics, err := m.CollectMetrics(ctx, 24*time.Hour)
	if err != nil {
		return nil, err
	}

	now := m.now()
	date := now.Format("2006-01-02")
	var alerts []model.Alert

	if metrics.TotalJobs < m.thresholds.MinDailyJobs {
		alerts = append(alerts, model.Alert{
			Type:     "low_collection",
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("daily collection (%d) below threshold (%d)",
				metrics.TotalJobs, m.thresholds.MinDailyJobs),
			Details:   map[string]any{"actual": metrics.TotalJobs, "threshold": m.thresholds.MinDailyJobs},
			Date:      date,
			CreatedAt: now,
		})
	}

	if minRate := 1 - m.thresholds.MaxMissingCompanyRate; metrics.TotalJobs > 0 && metrics.CompanyRate < minRate {
		alerts = append(alerts, model.Alert{
			Type:     "data_quality",
			Severity: model.SeverityError,
			Message: fmt.Sprintf("company extraction rate (%.1f%%) below acceptable level (%.1f%%)",
				100*metrics.CompanyRate, 100*minRate),
			Details:   map[string]any{"actualRate": metrics.CompanyRate, "threshold": minRate},
			Date:      date,
			CreatedAt: now,
		})
	}

	if metrics.TotalJobs > 0 && metrics.ErrorRate > m.thresholds.MaxErrorRate {
		alerts = append(alerts, model.Alert{
			Type:     "high_errors",
			Severity: model.SeverityError,
			Message: fmt.Sprintf("error rate (%.1f%%) exceeds threshold (%.1f%%)",
				100*metrics.ErrorRate, 100*m.thresholds.MaxErrorRate),
			Details:   map[string]any{"actualRate": metrics.ErrorRate, "threshold": m.thresholds.MaxErrorRate},
			Date:      date,
			CreatedAt: now,
		})
	}

	if metrics.TotalJobs > 0 && metrics.DuplicateRate > m.thresholds.MaxDuplicateRate {
		alerts = append(alerts, model.Alert{
			Type:     "high_duplicates",
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("duplicate rate (%.1f%%) exceeds threshold (%.1f%%)",
				100*metrics.DuplicateRate, 100*m.thresholds.MaxDuplicateRate),
			Details:   map[string]any{"actualRate": metrics.DuplicateRate, "threshold": m.thresholds.MaxDuplicateRate},
			Date:      date,
			CreatedAt: now,
		})
	}

	if stalled, err := m.collectionStalled(ctx); err == nil && stalled {
		alerts = append(alerts, model.Alert{
			Type:     "collection_stopped",
			Severity: model.SeverityCritical,
			Message: fmt.Sprintf("no postings collected in the last %d hours",
				m.thresholds.MaxHoursWithoutCollection),
			Details:   map[string]any{"hoursWithoutCollection": m.thresholds.MaxHoursWithoutCollection},
			Date:      now.Format("2006-01-02_15"),
			CreatedAt: now,
		})
	} else if err != nil {
		slog.Warn("monitor: liveness check failed", "err", err)
	}

	for _, a := range alerts {
		if err := m.sink.AppendAlert(ctx, a); err != nil {
			slog.Warn("monitor: alert store failed", "type", a.Type, "err", err)
		}
	}
	return alerts, nil
}

// DailyReport bundles metrics, fresh health alerts and recommendations.
func (m *Monitor) DailyReport(ctx context.Context) (Report, error) {
	alerts, err := m.CheckHealth(ctx)
	if err != nil {
		return Report{}, err
	}
	metrics, err := m.CollectMetrics(ctx, 24*time.Hour)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Date:            m.now().Format("2006-01-02"),
		Metrics:         metrics,
		Alerts:          alerts,
		Recommendations: recommendations(metrics, alerts, m.thresholds),
	}, nil
}

func (m *Monitor) collectionStalled(ctx context.Context) (bool, error) {
	since := m.now().Add(-time.Duration(m.thresholds.MaxHoursWithoutCollection) * time.Hour)
	recent, err := m.reader.QueryRecent(ctx, since)
	if err != nil {
		return false, fmt.Errorf("liveness query: %w", err)
	}
	return len(recent) == 0, nil
}

func recommendations(metrics Metrics, alerts []model.Alert, t model.AlertThresholds) []string {
	var recs []string

	if metrics.TotalJobs > 0 && metrics.CompanyRate < 0.8 {
		recs = append(recs, "improve company name extraction or review source data quality")
	}
	if metrics.DuplicateRate > 0.1 {
		recs = append(recs, "review deduplication logic and fingerprint generation")
	}
	if metrics.TotalJobs < t.MinDailyJobs {
		recs = append(recs, "increase collection frequency or expand search terms and locations")
	}

	if best, worst, ok := extremeSources(metrics.BySource); ok {
		if float64(metrics.BySource[worst]) < 0.3*float64(metrics.BySource[best]) {
			recs = append(recs, fmt.Sprintf("investigate %s: significantly underperforming compared to %s", worst, best))
		}
	}

	for _, a := range alerts {
		if a.Severity == model.SeverityCritical {
			recs = append(recs, "address critical alerts immediately: collection may have stopped")
			break
		}
	}
	return recs
}

// extremeSources returns the best and worst performing sources; ok is false
// with fewer than two sources.
func extremeSources(bySource map[string]int) (best, worst string, ok bool) {
	if len(bySource) < 2 {
		return "", "", false
	}
	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic tie-breaking
	best, worst = names[0], names[0]
	for _, name := range names[1:] {
		if bySource[name] > bySource[best] {
			best = name
		}
		if bySource[name] < bySource[worst] {
			worst = name
		}
	}
	return best, worst, true
}

func rankTerms(counts map[string]int, limit int) []TermCount {
	ranked := make([]TermCount, 0, len(counts))
	for term, n := range counts {
		ranked = append(ranked, TermCount{Term: term, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Term < ranked[j].Term
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
