package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// SnapshotRepository stores the last applied collection per key so a restarted
// client can show documents before its first refresh completes.
type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrently starting clients.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_snapshots (
	snapshot_key TEXT PRIMARY KEY,
	documents JSONB NOT NULL DEFAULT '[]'::jsonb,
	document_count INTEGER NOT NULL DEFAULT 0,
	fetched_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the collection. An older fetch never overwrites a newer one.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, key string, docs []domain.Document, fetchedAt time.Time) error {
	if docs == nil {
		docs = []domain.Document{}
	}
	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO document_snapshots (snapshot_key, documents, document_count, fetched_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (snapshot_key) DO UPDATE
SET documents = EXCLUDED.documents,
	document_count = EXCLUDED.document_count,
	fetched_at = EXCLUDED.fetched_at,
	updated_at = EXCLUDED.updated_at
WHERE document_snapshots.fetched_at <= EXCLUDED.fetched_at
`, key, payload, len(docs), fetchedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, key string) ([]domain.Document, time.Time, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT documents, fetched_at
FROM document_snapshots
WHERE snapshot_key = $1
`, key)

	var raw []byte
	var fetchedAt time.Time
	if err := row.Scan(&raw, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, domain.WrapError(domain.ErrSnapshotNotFound, "load snapshot", fmt.Errorf("key %q", key))
		}
		return nil, time.Time{}, fmt.Errorf("scan snapshot: %w", err)
	}

	var docs []domain.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return docs, fetchedAt, nil
}
