// Package dedup accumulates validated, fingerprinted postings into bounded
// batches and flushes them to the repository.
//
// Invariant: every posting passed to Add ends up persisted, counted as a
// duplicate, or counted as an error — never silently dropped.
package dedup

import (
	"context"
	"log/slog"
	"sync"

	"github.com/louiscollinsjr/getWork-run/internal/fingerprint"
	"github.com/louiscollinsjr/getWork-run/internal/model"
)

// Repository is the durable sink. Upserts are keyed by fingerprint and must
// be idempotent: re-applying an identical batch creates no duplicate rows.
type Repository interface {
	UpsertBatch(ctx context.Context, postings []model.Posting) (stored int64, err error)
	UpsertOne(ctx context.Context, p model.Posting) (stored bool, err error)
	ExistsByFingerprint(ctx context.Context, fp string) (bool, error)
}

// Counts is a snapshot of batcher bookkeeping for the run summary.
type Counts struct {
	Added      int64
	Duplicates int64
	Stored     int64
	Errors     int64
}

// Batcher deduplicates and buffers postings. Appends from concurrent
// workers are serialized by a single mutex covering the append,
// capacity check, and flush trigger.
type Batcher struct {
	mu     sync.Mutex
	repo   Repository
	size   int
	strict bool // also point-query the repository per posting

	seen   map[string]struct{}
	batch  []model.Posting
	counts Counts
}

// New returns a Batcher flushing every size postings. strict enables
// cross-run deduplication via repository lookups; without it the in-memory
// set gives per-run correctness and the idempotent upsert handles the rest.
func New(repo Repository, size int, strict bool) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{
		repo:   repo,
		size:   size,
		strict: strict,
		seen:   make(map[string]struct{}),
		batch:  make([]model.Posting, 0, size),
	}
}

// Add fingerprints p if needed, discards duplicates, and buffers the rest.
// Reaching capacity triggers a flush inside the same critical section so no
// concurrent Add can double-fill the batch.
func (b *Batcher) Add(ctx context.Context, p model.Posting) error {
	if p.Fingerprint == "" {
		p.Fingerprint = fingerprint.ForPosting(p)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts.Added++

	if _, dup := b.seen[p.Fingerprint]; dup {
		b.counts.Duplicates++
		return nil
	}
	if b.strict {
		exists, err := b.repo.ExistsByFingerprint(ctx, p.Fingerprint)
		if err != nil {
			// Lookup failure is not fatal: the upsert stays idempotent, so
			// the worst case is one extra no-op write.
			slog.Warn("dedup: fingerprint lookup failed", "err", err)
		} else if exists {
			b.seen[p.Fingerprint] = struct{}{}
			b.counts.Duplicates++
			return nil
		}
	}

	b.seen[p.Fingerprint] = struct{}{}
	b.batch = append(b.batch, p)

	if len(b.batch) >= b.size {
		return b.flushLocked(ctx)
	}
	return nil
}

// Flush writes the current batch, if any.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

// Finalize flushes the remaining partial batch. It must run on both normal
// completion and interruption so buffered postings are never lost.
func (b *Batcher) Finalize(ctx context.Context) error {
	return b.Flush(ctx)
}

// Counts returns the current bookkeeping snapshot.
func (b *Batcher) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// flushLocked attempts one bulk upsert and falls back to per-record upserts
// on failure, so a single bad record cannot void the whole batch. The batch
// is cleared either way to bound memory; per-record failures are counted,
// not retried.
func (b *Batcher) flushLocked(ctx context.Context) error {
	if len(b.batch) == 0 {
		return nil
	}
	pending := b.batch
	b.batch = make([]model.Posting, 0, b.size)

	stored, err := b.repo.UpsertBatch(ctx, pending)
	if err == nil {
		b.counts.Stored += stored
		return nil
	}
	slog.Warn("dedup: bulk upsert failed, retrying records individually",
		"batch", len(pending), "err", err)

	for _, p := range pending {
		ok, err := b.repo.UpsertOne(ctx, p)
		if err != nil {
			b.counts.Errors++
			continue
		}
		if ok {
			b.counts.Stored++
		}
	}
	return nil
}
