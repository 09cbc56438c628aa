package repository

import (
	"context"

	"safe-room-chat/internal/domain/model"
)

// SnapshotStore persists the whole room/message document atomically.
//
// Load returns domain.ErrNotFound when nothing was persisted yet and
// domain.ErrCorruptSnapshot when the stored document cannot be decoded.
// Any other error means the storage itself is inaccessible.
type SnapshotStore interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
}
