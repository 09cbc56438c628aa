// File: internal/usecase/room_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/repository"
	"safe-room-chat/internal/infra/metrics"
)

const (
	DefaultMessageLimit = 50
	MinMessageLimit     = 1
	MaxMessageLimit     = 5000
)

// Compile-time check
var _ RoomUseCase = (*roomUC)(nil)

// RoomUseCase owns room membership and bounded message history.
// All mutations are serialized; every mutation is followed by a durable write.
type RoomUseCase interface {
	EnsureRoom(ctx context.Context, room string) error
	AddMember(ctx context.Context, room, name string) error
	RemoveMember(ctx context.Context, room, name string) error
	AppendMessage(ctx context.Context, room, sender, body string) (model.Message, error)
	RoomInfo(ctx context.Context, room string) (*model.RoomInfo, error)
	RecentMessages(ctx context.Context, room string, limit int) ([]model.Message, error)
	ListRooms(ctx context.Context) map[string]int
	Flush(ctx context.Context) error
}

type roomUC struct {
	store       repository.SnapshotStore
	storeName   string
	maxMessages int
	clock       clockwork.Clock
	log         zerolog.Logger

	mu      sync.Mutex
	state   *model.Snapshot
	version uint64

	persistMu sync.Mutex
	persisted uint64
}

// NewRoomUseCase loads the persisted snapshot. A missing or corrupted snapshot
// starts empty; any other load error means storage is unusable and is returned.
func NewRoomUseCase(ctx context.Context, store repository.SnapshotStore, storeName string, maxMessages int, clock clockwork.Clock, logger *zerolog.Logger) (*roomUC, error) {
	if maxMessages <= 0 {
		return nil, fmt.Errorf("%w: max messages must be positive", domain.ErrInvalidArgument)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	uc := &roomUC{
		store:       store,
		storeName:   storeName,
		maxMessages: maxMessages,
		clock:       clock,
		log:         logger.With().Str("component", "RoomUC").Logger(),
	}

	snap, err := store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		snap = model.NewSnapshot()
	case errors.Is(err, domain.ErrCorruptSnapshot):
		uc.log.Warn().Err(err).Msg("snapshot unreadable, starting with empty state")
		snap = model.NewSnapshot()
	default:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap.ResetMembers()
	for room, msgs := range snap.Messages {
		if len(msgs) > maxMessages {
			snap.Messages[room] = append([]model.Message{}, msgs[len(msgs)-maxMessages:]...)
		}
	}
	uc.state = snap
	return uc, nil
}

func (r *roomUC) EnsureRoom(ctx context.Context, room string) error {
	if err := validRoom(room); err != nil {
		return err
	}
	r.mu.Lock()
	created := r.ensureLocked(room)
	snap, ver := r.handoffLocked(created)
	r.mu.Unlock()

	if created {
		r.persist(ctx, snap, ver)
	}
	return nil
}

func (r *roomUC) AddMember(ctx context.Context, room, name string) error {
	return r.updateMembers(ctx, room, name, (*model.Room).AddMember)
}

func (r *roomUC) RemoveMember(ctx context.Context, room, name string) error {
	return r.updateMembers(ctx, room, name, (*model.Room).RemoveMember)
}

func (r *roomUC) updateMembers(ctx context.Context, room, name string, apply func(*model.Room, string) bool) error {
	if err := validRoom(room); err != nil {
		return err
	}
	r.mu.Lock()
	r.ensureLocked(room)
	meta := r.state.Rooms[room]
	apply(meta, name)
	meta.LastUpdated = r.clock.Now().UTC()
	snap, ver := r.handoffLocked(true)
	r.mu.Unlock()

	r.persist(ctx, snap, ver)
	return nil
}

// AppendMessage stamps, stores and persists a message. Timestamps never go
// backwards within a room even if the wall clock does.
func (r *roomUC) AppendMessage(ctx context.Context, room, sender, body string) (model.Message, error) {
	if err := validRoom(room); err != nil {
		return model.Message{}, err
	}
	r.mu.Lock()
	r.ensureLocked(room)
	bucket := r.state.Messages[room]

	ts := r.clock.Now().UTC()
	if n := len(bucket); n > 0 && ts.Before(bucket[n-1].Timestamp) {
		ts = bucket[n-1].Timestamp
	}
	msg := model.Message{From: sender, Body: body, Timestamp: ts}

	bucket = append(bucket, msg)
	if over := len(bucket) - r.maxMessages; over > 0 {
		bucket = append(bucket[:0:0], bucket[over:]...)
	}
	r.state.Messages[room] = bucket
	r.state.Rooms[room].LastUpdated = ts
	snap, ver := r.handoffLocked(true)
	r.mu.Unlock()

	metrics.IncMessageAppended()
	r.persist(ctx, snap, ver)
	return msg, nil
}

func (r *roomUC) RoomInfo(_ context.Context, room string) (*model.RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.state.Rooms[room]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.RoomInfo{
		Name:         room,
		Members:      append([]string{}, meta.Members...),
		CreatedAt:    meta.CreatedAt,
		LastUpdated:  meta.LastUpdated,
		MessageCount: len(r.state.Messages[room]),
	}, nil
}

// RecentMessages returns up to limit messages, newest first. limit is clamped
// to [MinMessageLimit, MaxMessageLimit].
func (r *roomUC) RecentMessages(_ context.Context, room string, limit int) ([]model.Message, error) {
	limit = ClampLimit(limit)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.Rooms[room]; !ok {
		return nil, domain.ErrNotFound
	}
	bucket := r.state.Messages[room]
	if limit > len(bucket) {
		limit = len(bucket)
	}
	out := make([]model.Message, 0, limit)
	for i := len(bucket) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, bucket[i])
	}
	return out, nil
}

func (r *roomUC) ListRooms(_ context.Context) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.state.Rooms))
	for name, meta := range r.state.Rooms {
		out[name] = len(meta.Members)
	}
	return out
}

// Flush writes the current state regardless of what was persisted before.
func (r *roomUC) Flush(ctx context.Context) error {
	r.mu.Lock()
	snap, ver := r.handoffLocked(true)
	r.mu.Unlock()

	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if err := r.store.Save(ctx, snap); err != nil {
		metrics.IncSnapshotWrite(r.storeName, false)
		return fmt.Errorf("flush snapshot: %w", err)
	}
	metrics.IncSnapshotWrite(r.storeName, true)
	if ver > r.persisted {
		r.persisted = ver
	}
	return nil
}

func (r *roomUC) ensureLocked(room string) bool {
	created := false
	if _, ok := r.state.Rooms[room]; !ok {
		r.state.Rooms[room] = model.NewRoom(r.clock.Now().UTC())
		created = true
	}
	if _, ok := r.state.Messages[room]; !ok {
		r.state.Messages[room] = []model.Message{}
	}
	return created
}

// handoffLocked bumps the version and copies the state for persistence outside
// the lock. Must be called with r.mu held.
func (r *roomUC) handoffLocked(changed bool) (*model.Snapshot, uint64) {
	if !changed {
		return nil, r.version
	}
	r.version++
	return r.state.Clone(), r.version
}

// persist writes snap unless a newer version is already on disk. Writes are
// serialized so two snapshots never interleave.
func (r *roomUC) persist(ctx context.Context, snap *model.Snapshot, ver uint64) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if ver <= r.persisted {
		return
	}
	if err := r.store.Save(ctx, snap); err != nil {
		metrics.IncSnapshotWrite(r.storeName, false)
		r.log.Error().Err(err).Uint64("version", ver).Msg("persist snapshot failed")
		return
	}
	metrics.IncSnapshotWrite(r.storeName, true)
	r.persisted = ver
}

// ClampLimit maps a caller supplied limit into [MinMessageLimit, MaxMessageLimit].
func ClampLimit(limit int) int {
	switch {
	case limit < MinMessageLimit:
		return MinMessageLimit
	case limit > MaxMessageLimit:
		return MaxMessageLimit
	}
	return limit
}

func validRoom(room string) error {
	if strings.TrimSpace(room) == "" {
		return fmt.Errorf("%w: empty room name", domain.ErrInvalidArgument)
	}
	return nil
}
