package dedup_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/louiscollinsjr/getWork-run/internal/dedup"
	"github.com/louiscollinsjr/getWork-run/internal/fingerprint"
	"github.com/louiscollinsjr/getWork-run/internal/model"
)

// fakeRepo stores postings keyed by fingerprint, mimicking the idempotent
// ON CONFLICT upsert semantics of the real repository.
type fakeRepo struct {
	mu      sync.Mutex
	rows    map[string]model.Posting
	batches int

	failBulk   bool
	failOneFor string // fingerprint whose individual upsert errors
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]model.Posting)}
}

func (r *fakeRepo) UpsertBatch(_ context.Context, ps []model.Posting) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failBulk {
		return 0, errors.New("bulk write refused")
	}
	r.batches++
	var stored int64
	for _, p := range ps {
		if _, ok := r.rows[p.Fingerprint]; !ok {
			r.rows[p.Fingerprint] = p
			stored++
		}
	}
	return stored, nil
}

func (r *fakeRepo) UpsertOne(_ context.Context, p model.Posting) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Fingerprint == r.failOneFor {
		return false, errors.New("bad record")
	}
	if _, ok := r.rows[p.Fingerprint]; ok {
		return false, nil
	}
	r.rows[p.Fingerprint] = p
	return true, nil
}

func (r *fakeRepo) ExistsByFingerprint(_ context.Context, fp string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[fp]
	return ok, nil
}

func posting(n int) model.Posting {
	return model.Posting{
		Title:    fmt.Sprintf("Engineer %d", n),
		Company:  "Acme",
		Location: "Remote",
	}
}

// ── Buffering and auto-flush ───────────────────────────────────────────────

func TestAdd_AutoFlushesAtCapacity(t *testing.T) {
	repo := newFakeRepo()
	b := dedup.New(repo, 3, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Add(ctx, posting(i)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if repo.batches != 1 {
		t.Errorf("batches = %d, want auto-flush at capacity", repo.batches)
	}
	if len(repo.rows) != 3 {
		t.Errorf("rows = %d, want 3", len(repo.rows))
	}
}

func TestFinalize_FlushesPartialBatch(t *testing.T) {
	repo := newFakeRepo()
	b := dedup.New(repo, 10, false)
	ctx := context.Background()

	b.Add(ctx, posting(1))
	b.Add(ctx, posting(2))
	if len(repo.rows) != 0 {
		t.Fatal("nothing should be stored before flush")
	}

	if err := b.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(repo.rows) != 2 {
		t.Errorf("rows = %d, want buffered postings persisted", len(repo.rows))
	}
}

// ── Deduplication ──────────────────────────────────────────────────────────

func TestAdd_DiscardsDuplicatesWithinRun(t *testing.T) {
	repo := newFakeRepo()
	b := dedup.New(repo, 10, false)
	ctx := context.Background()

	b.Add(ctx, posting(1))
	b.Add(ctx, posting(1)) // same normalized identity
	b.Finalize(ctx)

	c := b.Counts()
	if c.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", c.Duplicates)
	}
	if len(repo.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(repo.rows))
	}
}

func TestAdd_StrictModeChecksRepository(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()

	// Seed a row from a previous run.
	pre := posting(1)
	first := dedup.New(repo, 1, false)
	first.Add(ctx, pre)

	b := dedup.New(repo, 10, true)
	b.Add(ctx, posting(1))
	b.Finalize(ctx)

	c := b.Counts()
	if c.Duplicates != 1 {
		t.Errorf("Duplicates = %d, strict mode should catch cross-run duplicate", c.Duplicates)
	}
	if c.Stored != 0 {
		t.Errorf("Stored = %d, want 0", c.Stored)
	}
}

// ── Idempotent flush ───────────────────────────────────────────────────────

func TestFlush_IdempotentAgainstRepository(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()

	// Two batchers adding identical postings (e.g. overlapping runs):
	// stored row count must match a single application.
	for i := 0; i < 2; i++ {
		b := dedup.New(repo, 10, false)
		for n := 0; n < 4; n++ {
			b.Add(ctx, posting(n))
		}
		b.Finalize(ctx)
	}
	if len(repo.rows) != 4 {
		t.Errorf("rows = %d, want 4 after applying the same batch twice", len(repo.rows))
	}
}

// ── Bulk failure fallback ──────────────────────────────────────────────────

func TestFlush_FallsBackToPerRecordUpserts(t *testing.T) {
	repo := newFakeRepo()
	repo.failBulk = true
	b := dedup.New(repo, 10, false)
	ctx := context.Background()

	for n := 0; n < 3; n++ {
		b.Add(ctx, posting(n))
	}
	if err := b.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if len(repo.rows) != 3 {
		t.Errorf("rows = %d, fallback should store all records", len(repo.rows))
	}
	if c := b.Counts(); c.Stored != 3 {
		t.Errorf("Stored = %d, want 3", c.Stored)
	}
}

func TestFlush_OneBadRecordDoesNotVoidBatch(t *testing.T) {
	repo := newFakeRepo()
	repo.failBulk = true
	b := dedup.New(repo, 10, false)
	ctx := context.Background()

	bad := posting(1)
	repo.failOneFor = fingerprint.ForPosting(bad)

	b.Add(ctx, bad)
	b.Add(ctx, posting(2))
	b.Add(ctx, posting(3))

	if err := b.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	c := b.Counts()
	if c.Stored != 2 {
		t.Errorf("Stored = %d, want 2", c.Stored)
	}
	if c.Errors != 1 {
		t.Errorf("Errors = %d, want the bad record counted", c.Errors)
	}
}
