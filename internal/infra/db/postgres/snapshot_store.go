// File: internal/infra/db/postgres/snapshot_store.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/repository"
)

// Schema holds the single snapshot row. The document is replaced as a whole.
const Schema = `
CREATE TABLE IF NOT EXISTS room_snapshots (
    id         SMALLINT PRIMARY KEY,
    doc        JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const snapshotRowID = 1

// Ensure interface compliance
var _ repository.SnapshotStore = (*SnapshotStore)(nil)

type SnapshotStore struct {
	pool *pgxpool.Pool
}

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Migrate creates the snapshot table when missing.
func (s *SnapshotStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate room_snapshots: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context) (*model.Snapshot, error) {
	const sql = `SELECT doc FROM room_snapshots WHERE id = $1;`
	var doc []byte
	if err := s.pool.QueryRow(ctx, sql, snapshotRowID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("Load snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, fmt.Errorf("%w: room_snapshots: %v", domain.ErrCorruptSnapshot, err)
	}
	return &snap, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snap *model.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	const sql = `
INSERT INTO room_snapshots (id, doc, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (id) DO UPDATE
  SET doc        = EXCLUDED.doc,
      updated_at = EXCLUDED.updated_at;
`
	if _, err := s.pool.Exec(ctx, sql, snapshotRowID, string(doc)); err != nil {
		return fmt.Errorf("Save snapshot: %w", err)
	}
	return nil
}
