// Package scheduler drives the collection loop: it enumerates
// (source × term × location) combinations, paces and admits requests,
// fetches through the retry controller, feeds results to the deduplicating
// batcher, and checkpoints progress for crash-safe resume.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/louiscollinsjr/getWork-run/internal/dedup"
	"github.com/louiscollinsjr/getWork-run/internal/model"
	"github.com/louiscollinsjr/getWork-run/internal/quota"
	"github.com/louiscollinsjr/getWork-run/internal/retry"
)

// Fetcher is the external capability that actually talks to a job board.
// It may hang; callers wrap it with a timeout.
type Fetcher interface {
	Fetch(ctx context.Context, source model.Source, term, location string, resultsWanted, hoursOld int) ([]model.Posting, error)
}

// Admitter decides whether a source may be called, charges quota at
// admission time, and penalizes sources whose requests fail.
type Admitter interface {
	CanAdmit(ctx context.Context, source string) bool
	Consume(ctx context.Context, source string)
	Penalize(ctx context.Context, source string)
	Status(ctx context.Context, source string) (quota.Usage, error)
}

// Pacer computes the advisory wait before the next request to a source.
type Pacer interface {
	DelayBeforeNext(src model.Source) time.Duration
}

// CheckpointStore persists per-epoch completion state.
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context, epoch string) (*model.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error
}

// Params carries the run-shaping knobs from configuration.
type Params struct {
	Sources              []model.Source
	Terms                []string
	Locations            []string
	BatchSize            int
	DedupStrict          bool
	MaxJobsPerRun        int
	MaxJobsPerSearch     int
	HoursOld             int
	CheckpointFlushEvery int
	Workers              int
	FetchTimeout         time.Duration
}

// Scheduler orchestrates collection runs. Admission decisions happen
// sequentially in the main loop; fetch + store sequences for admitted
// combinations run concurrently up to Params.Workers.
type Scheduler struct {
	p           Params
	quota       Admitter
	pacer       Pacer
	retrier     *retry.Controller
	fetcher     Fetcher
	repo        dedup.Repository
	checkpoints CheckpointStore

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires a Scheduler from its collaborators.
func New(p Params, adm Admitter, pacer Pacer, retrier *retry.Controller, fetcher Fetcher, repo dedup.Repository, cps CheckpointStore) *Scheduler {
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.MaxJobsPerSearch < 1 {
		p.MaxJobsPerSearch = 50
	}
	if p.CheckpointFlushEvery < 1 {
		p.CheckpointFlushEvery = 1
	}
	return &Scheduler{
		p:           p,
		quota:       adm,
		pacer:       pacer,
		retrier:     retrier,
		fetcher:     fetcher,
		repo:        repo,
		checkpoints: cps,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// run bundles the mutable state of a single collection run.
type run struct {
	s       *Scheduler
	epoch   string
	cp      *model.Checkpoint
	stats   *model.RunStats
	batcher *dedup.Batcher

	mu        sync.Mutex // guards cp and sinceSave
	sinceSave int
}

// Run executes one collection pass over all combinations not yet completed
// this epoch. It always finalizes buffered postings and persists the
// checkpoint — on normal completion, on the job cap, and on cancellation —
// and returns aggregate stats for the run.
func (s *Scheduler) Run(ctx context.Context) (model.Summary, error) {
	start := s.now()
	epoch := start.Format("2006-01-02")
	batchID := fmt.Sprintf("%s_%s", start.Format("20060102_150405"), uuid.NewString()[:8])

	cp, err := s.checkpoints.LoadCheckpoint(ctx, epoch)
	if err != nil {
		// Resume state is an optimization; the deduplicator still prevents
		// duplicate storage, so start from an empty set.
		slog.Warn("scheduler: checkpoint load failed, starting fresh", "epoch", epoch, "err", err)
		cp = model.NewCheckpoint(epoch)
	}
	cp.BatchID = batchID

	r := &run{
		s:       s,
		epoch:   epoch,
		cp:      cp,
		stats:   &model.RunStats{},
		batcher: dedup.New(s.repo, s.p.BatchSize, s.p.DedupStrict),
	}

	combos := Enumerate(s.p.Terms, s.p.Locations, s.p.Sources)
	log.Printf("[scheduler] Run %s started — %d combinations, %d already completed this epoch",
		batchID, len(combos), len(cp.Completed))

	sem := make(chan struct{}, s.p.Workers)
	var wg sync.WaitGroup

	cancelled := false
	for _, combo := range combos {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if r.stats.Found.Load() >= int64(s.p.MaxJobsPerRun) {
			log.Printf("[scheduler] Job cap %d reached — stopping enumeration", s.p.MaxJobsPerRun)
			break
		}

		key := combo.Key(epoch)
		if r.done(key) {
			r.stats.Skipped.Add(1)
			continue
		}

		if err := s.sleep(ctx, s.pacer.DelayBeforeNext(combo.Source)); err != nil {
			cancelled = true
			break
		}

		if !s.quota.CanAdmit(ctx, combo.Source.Name) {
			// Not an error: the combination stays uncompleted and may be
			// retried in a later run or epoch.
			r.stats.Deferred.Add(1)
			continue
		}
		// Charge here, not in the worker, so admission checks always see
		// quota already consumed by in-flight requests.
		s.quota.Consume(ctx, combo.Source.Name)

		wg.Add(1)
		sem <- struct{}{}
		go func(c model.Combination) {
			defer wg.Done()
			defer func() { <-sem }()
			r.process(ctx, c)
		}(combo)
	}
	wg.Wait()

	// Finalization must survive cancellation or buffered postings are lost.
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := r.batcher.Finalize(finCtx); err != nil {
		slog.Warn("scheduler: finalize failed", "err", err)
	}
	r.saveCheckpoint(finCtx)

	counts := r.batcher.Counts()
	r.stats.Stored.Store(counts.Stored)
	r.stats.Duplicates.Store(counts.Duplicates)
	r.stats.Errors.Add(counts.Errors)

	summary := r.stats.Snapshot()
	s.logSummary(finCtx, batchID, summary, cancelled)

	if cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// done reports whether the combination key completed, under the run lock.
func (r *run) done(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cp.Done(key)
}

// process runs the fetch → normalize → batch sequence for one admitted
// combination. A combination completes on success — including an empty
// result — but stays pending when retries exhaust without reaching the
// source, so a later run can try again.
func (r *run) process(ctx context.Context, c model.Combination) {
	want := r.s.p.MaxJobsPerSearch
	if remaining := int64(r.s.p.MaxJobsPerRun) - r.stats.Found.Load(); remaining < int64(want) {
		if remaining <= 0 {
			return
		}
		want = int(remaining)
	}

	var postings []model.Posting
	err := r.s.retrier.Do(ctx, func(ctx context.Context) error {
		fctx, cancel := context.WithTimeout(ctx, r.s.p.FetchTimeout)
		defer cancel()
		var ferr error
		postings, ferr = r.s.fetcher.Fetch(fctx, c.Source, c.Term, c.Location, want, r.s.p.HoursOld)
		return ferr
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.s.quota.Penalize(ctx, c.Source.Name)
		r.stats.Errors.Add(1)
		log.Printf("[scheduler] %s %q @ %q failed: %v — skipping for this run",
			c.Source.Name, c.Term, c.Location, err)
		return
	}

	r.stats.Found.Add(int64(len(postings)))
	for _, p := range postings {
		p.BatchID = r.cp.BatchID
		if err := r.batcher.Add(ctx, p); err != nil {
			slog.Warn("scheduler: batch add failed", "source", c.Source.Name, "err", err)
		}
	}
	if len(postings) > 0 {
		log.Printf("[scheduler] %s %q @ %q: %d postings", c.Source.Name, c.Term, c.Location, len(postings))
	}

	r.stats.Completed.Add(1)
	r.markCompleted(ctx, c.Key(r.epoch))
}

// markCompleted records the key and persists the checkpoint every
// CheckpointFlushEvery completions, bounding crash rework. The save itself
// runs outside the lock on a snapshot.
func (r *run) markCompleted(ctx context.Context, key string) {
	r.mu.Lock()
	r.cp.MarkDone(key, r.s.now())
	r.sinceSave++
	var snapshot *model.Checkpoint
	if r.sinceSave >= r.s.p.CheckpointFlushEvery {
		r.sinceSave = 0
		snapshot = cloneCheckpoint(r.cp)
	}
	r.mu.Unlock()

	if snapshot != nil {
		if err := r.s.checkpoints.SaveCheckpoint(ctx, snapshot); err != nil {
			slog.Warn("scheduler: checkpoint save failed", "epoch", r.epoch, "err", err)
		}
	}
}

// saveCheckpoint persists the final state of the run.
func (r *run) saveCheckpoint(ctx context.Context) {
	r.mu.Lock()
	snapshot := cloneCheckpoint(r.cp)
	r.mu.Unlock()

	if err := r.s.checkpoints.SaveCheckpoint(ctx, snapshot); err != nil {
		slog.Warn("scheduler: final checkpoint save failed", "epoch", r.epoch, "err", err)
	}
}

func cloneCheckpoint(cp *model.Checkpoint) *model.Checkpoint {
	out := model.NewCheckpoint(cp.Epoch)
	out.UpdatedAt = cp.UpdatedAt
	out.BatchID = cp.BatchID
	for k := range cp.Completed {
		out.Completed[k] = struct{}{}
	}
	return out
}

func (s *Scheduler) logSummary(ctx context.Context, batchID string, sum model.Summary, cancelled bool) {
	state := "complete"
	if cancelled {
		state = "interrupted"
	}
	log.Printf("[scheduler] Run %s %s — found=%d stored=%d duplicates=%d errors=%d deferred=%d skipped=%d",
		batchID, state, sum.Found, sum.Stored, sum.Duplicates, sum.Errors, sum.Deferred, sum.Skipped)

	for _, src := range s.p.Sources {
		u, err := s.quota.Status(ctx, src.Name)
		if err != nil {
			continue
		}
		log.Printf("[scheduler]   %s: %d/%d used (%d remaining)", src.Name, u.Used, u.Limit, u.Remaining)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
