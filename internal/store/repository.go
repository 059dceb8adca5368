// Package store implements the durable repository over PostgreSQL: job
// postings keyed by fingerprint, epoch-scoped checkpoints, and health
// alerts keyed by (type, date). All writes are idempotent.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/louiscollinsjr/getWork-run/internal/model"
)

const upsertJobSQL = `
	INSERT INTO jobs (fingerprint, title, company, location, description,
	                  salary_text, url, posted_at, remote, source,
	                  search_term, search_location, collected_at, batch_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (fingerprint) DO NOTHING`

// Repository wraps a pgx pool with the collection service's persistence
// operations.
type Repository struct {
	pool *pgxpool.Pool
}

// New returns a Repository over an established pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ── Jobs ─────────────────────────────────────────────────────────────────

// UpsertBatch writes the postings in one round trip and returns how many
// rows were actually inserted. Conflicting fingerprints are skipped, so
// re-applying an identical batch stores nothing new.
func (r *Repository) UpsertBatch(ctx context.Context, postings []model.Posting) (int64, error) {
	if len(postings) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range postings {
		batch.Queue(upsertJobSQL, jobArgs(p)...)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	var stored int64
	for range postings {
		tag, err := br.Exec()
		if err != nil {
			return stored, fmt.Errorf("bulk upsert: %w", err)
		}
		stored += tag.RowsAffected()
	}
	return stored, nil
}

// UpsertOne writes a single posting; the bool reports whether a new row was
// created.
func (r *Repository) UpsertOne(ctx context.Context, p model.Posting) (bool, error) {
	tag, err := r.pool.Exec(ctx, upsertJobSQL, jobArgs(p)...)
	if err != nil {
		return false, fmt.Errorf("upsert job %s: %w", p.Fingerprint, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExistsByFingerprint reports whether a posting with the fingerprint is
// already stored.
func (r *Repository) ExistsByFingerprint(ctx context.Context, fp string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE fingerprint = $1)`, fp,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", fp, err)
	}
	return exists, nil
}

// QueryRecent returns postings collected at or after since, newest first.
// Used by the health monitor.
func (r *Repository) QueryRecent(ctx context.Context, since time.Time) ([]model.Posting, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT fingerprint, title, company, location, description,
		        COALESCE(salary_text, ''), url, COALESCE(posted_at, ''),
		        remote, source, search_term, search_location, collected_at,
		        COALESCE(batch_id, '')
		 FROM jobs
		 WHERE collected_at >= $1
		 ORDER BY collected_at DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent jobs: %w", err)
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		var p model.Posting
		if err := rows.Scan(
			&p.Fingerprint, &p.Title, &p.Company, &p.Location, &p.Description,
			&p.SalaryText, &p.URL, &p.PostedAt, &p.Remote, &p.Source,
			&p.SearchTerm, &p.SearchLocation, &p.CollectedAt, &p.BatchID,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// ── Checkpoints ──────────────────────────────────────────────────────────

// LoadCheckpoint returns the checkpoint for the epoch, or a fresh empty one
// when none was persisted yet.
func (r *Repository) LoadCheckpoint(ctx context.Context, epoch string) (*model.Checkpoint, error) {
	var (
		keys      []string
		updatedAt time.Time
		batchID   string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT completed, updated_at, COALESCE(batch_id, '')
		 FROM checkpoints WHERE epoch = $1`,
		epoch,
	).Scan(&keys, &updatedAt, &batchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NewCheckpoint(epoch), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", epoch, err)
	}

	cp := model.NewCheckpoint(epoch)
	cp.UpdatedAt = updatedAt
	cp.BatchID = batchID
	for _, k := range keys {
		cp.Completed[k] = struct{}{}
	}
	return cp, nil
}

// SaveCheckpoint upserts the checkpoint row for its epoch.
func (r *Repository) SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	keys := make([]string, 0, len(cp.Completed))
	for k := range cp.Completed {
		keys = append(keys, k)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO checkpoints (epoch, completed, updated_at, batch_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (epoch) DO UPDATE
		 SET completed = EXCLUDED.completed,
		     updated_at = EXCLUDED.updated_at,
		     batch_id = EXCLUDED.batch_id`,
		cp.Epoch, keys, cp.UpdatedAt, cp.BatchID,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.Epoch, err)
	}
	return nil
}

// ── Alerts ───────────────────────────────────────────────────────────────

// AppendAlert stores the alert unless one with the same (type, date)
// identity already exists — re-evaluating within the same epoch never
// creates a second row.
func (r *Repository) AppendAlert(ctx context.Context, a model.Alert) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("marshal alert details: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO collection_alerts (alert_type, alert_date, severity, message, details, created_at, resolved)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		 ON CONFLICT (alert_type, alert_date) DO NOTHING`,
		a.Type, a.Date, string(a.Severity), a.Message, string(details), a.CreatedAt, a.Resolved,
	)
	if err != nil {
		return fmt.Errorf("append alert %s/%s: %w", a.Type, a.Date, err)
	}
	return nil
}

func jobArgs(p model.Posting) []any {
	return []any{
		p.Fingerprint, p.Title, p.Company, p.Location, p.Description,
		p.SalaryText, p.URL, p.PostedAt, p.Remote, p.Source,
		p.SearchTerm, p.SearchLocation, p.CollectedAt, p.BatchID,
	}
}
