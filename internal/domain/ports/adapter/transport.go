package adapter

import (
	"context"
	"time"

	"safe-room-chat/internal/domain/model"
)

// Transport delivers events to connected sessions. Room scoping mirrors the
// session's current membership as maintained by the chat use case.
type Transport interface {
	JoinRoom(sessionID, room string)
	LeaveRoom(sessionID, room string)
	Broadcast(ctx context.Context, room string, ev model.Event) error
	Send(ctx context.Context, sessionID string, ev model.Event) error
}

// RateLimiter counts events per key in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
