//go:build !integration

// File: internal/infra/web/mock_test.go
package web

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/usecase"
)

var (
	epoch      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	testLogger = zerolog.Nop()
)

// mockRoomUC serves canned rooms; unknown names yield domain.ErrNotFound.
type mockRoomUC struct {
	usecase.RoomUseCase
	rooms    map[string]*model.RoomInfo
	messages map[string][]model.Message
	lastN    int
}

func (m *mockRoomUC) ListRooms(context.Context) map[string]int {
	out := map[string]int{}
	for name, r := range m.rooms {
		out[name] = len(r.Members)
	}
	return out
}

func (m *mockRoomUC) RoomInfo(_ context.Context, room string) (*model.RoomInfo, error) {
	r, ok := m.rooms[room]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (m *mockRoomUC) RecentMessages(_ context.Context, room string, limit int) ([]model.Message, error) {
	m.lastN = limit
	if _, ok := m.rooms[room]; !ok {
		return nil, domain.ErrNotFound
	}
	msgs := m.messages[room]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func newTestServer(auth *AuthManager) (*Server, *mockRoomUC) {
	rooms := &mockRoomUC{
		rooms: map[string]*model.RoomInfo{
			"general": {Name: "general", Members: []string{"alice", "bob"}, CreatedAt: epoch, LastUpdated: epoch, MessageCount: 2},
			"empty":   {Name: "empty", Members: []string{}, CreatedAt: epoch, LastUpdated: epoch},
		},
		messages: map[string][]model.Message{
			"general": {
				{From: "bob", Body: "second", Timestamp: epoch.Add(time.Second)},
				{From: "alice", Body: "first", Timestamp: epoch},
			},
		},
	}
	filter := usecase.NewFilterUseCase(nil, nil, usecase.FilterOptions{Enabled: true}, &testLogger)
	return NewServer(rooms, filter, nil, auth, clockwork.NewFakeClockAt(epoch), &testLogger), rooms
}
