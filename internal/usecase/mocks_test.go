// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
)

var testLogger = zerolog.Nop()

// memSnapshotStore keeps the last saved snapshot in memory.
type memSnapshotStore struct {
	mu      sync.Mutex
	snap    *model.Snapshot
	loadErr error
	saveErr error
	saves   int
}

func (m *memSnapshotStore) Load(ctx context.Context) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.snap == nil {
		return nil, domain.ErrNotFound
	}
	return m.snap.Clone(), nil
}

func (m *memSnapshotStore) Save(ctx context.Context, s *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = s.Clone()
	m.saves++
	return nil
}

func (m *memSnapshotStore) last() *model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// memReputationCache is a map backed ReputationCache.
type memReputationCache struct {
	mu      sync.Mutex
	entries map[string]*model.ReputationCacheEntry
}

func newMemReputationCache() *memReputationCache {
	return &memReputationCache{entries: map[string]*model.ReputationCacheEntry{}}
}

func (c *memReputationCache) Get(ctx context.Context, url string) (*model.ReputationCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	cp := *e
	return &cp, nil
}

func (c *memReputationCache) Set(ctx context.Context, e *model.ReputationCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *e
	c.entries[e.URL] = &cp
	return nil
}


// mockReputationSource counts calls per URL.
type mockReputationSource struct {
	mu         sync.Mutex
	calls      map[string]int
	LookupFunc func(ctx context.Context, url string) (model.ReputationReport, error)
}

func newMockReputationSource(fn func(ctx context.Context, url string) (model.ReputationReport, error)) *mockReputationSource {
	return &mockReputationSource{calls: map[string]int{}, LookupFunc: fn}
}

func (m *mockReputationSource) Name() string { return "mock" }

func (m *mockReputationSource) Lookup(ctx context.Context, url string) (model.ReputationReport, error) {
	m.mu.Lock()
	m.calls[url]++
	m.mu.Unlock()
	return m.LookupFunc(ctx, url)
}

func (m *mockReputationSource) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

// mockSemanticValidator returns whatever ValidateFunc returns.
type mockSemanticValidator struct {
	mu           sync.Mutex
	calls        int
	lastReq      model.SemanticRequest
	ValidateFunc func(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error)
}

func (m *mockSemanticValidator) Name() string { return "mock" }

func (m *mockSemanticValidator) Validate(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error) {
	m.mu.Lock()
	m.calls++
	m.lastReq = req
	m.mu.Unlock()
	return m.ValidateFunc(ctx, req)
}

func (m *mockSemanticValidator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// sentEvent records one delivery made through mockTransport.
type sentEvent struct {
	Room      string
	SessionID string
	Event     model.Event
}

type mockTransport struct {
	mu         sync.Mutex
	broadcasts []sentEvent
	direct     []sentEvent
	joins      map[string]string
}

func newMockTransport() *mockTransport {
	return &mockTransport{joins: map[string]string{}}
}

func (t *mockTransport) JoinRoom(sessionID, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joins[sessionID] = room
}

func (t *mockTransport) LeaveRoom(sessionID, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.joins[sessionID] == room {
		delete(t.joins, sessionID)
	}
}

func (t *mockTransport) Broadcast(ctx context.Context, room string, ev model.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcasts = append(t.broadcasts, sentEvent{Room: room, Event: ev})
	return nil
}

func (t *mockTransport) Send(ctx context.Context, sessionID string, ev model.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.direct = append(t.direct, sentEvent{SessionID: sessionID, Event: ev})
	return nil
}

type mockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *mockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.AllowFunc(ctx, key, limit, window)
}
