// File: internal/infra/memcache/reputation_cache.go
package memcache

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/repository"
	"safe-room-chat/internal/infra/metrics"
)

const cacheName = "reputation_memory"

var _ repository.ReputationCache = (*ReputationCache)(nil)

// ReputationCache is a process-local map of assessments. Expired entries stay
// until a lookup evicts them or PurgeExpired runs.
type ReputationCache struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]model.ReputationCacheEntry
}

func NewReputationCache(clock clockwork.Clock) *ReputationCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ReputationCache{clock: clock, entries: make(map[string]model.ReputationCacheEntry)}
}

func (c *ReputationCache) Get(_ context.Context, url string) (*model.ReputationCacheEntry, error) {
	c.mu.RLock()
	e, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok {
		metrics.IncCacheRequest(cacheName, "miss")
		return nil, domain.ErrCacheMiss
	}
	metrics.IncCacheRequest(cacheName, "hit")
	return &e, nil
}

func (c *ReputationCache) Set(_ context.Context, entry *model.ReputationCacheEntry) error {
	c.mu.Lock()
	c.entries[entry.URL] = *entry
	c.mu.Unlock()
	return nil
}

func (c *ReputationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// PurgeExpired drops every entry no longer valid and returns how many went.
func (c *ReputationCache) PurgeExpired(_ context.Context) (int, error) {
	now := c.clock.Now()
	c.mu.Lock()
	n := 0
	for url, e := range c.entries {
		if !e.Valid(now) {
			delete(c.entries, url)
			n++
		}
	}
	c.mu.Unlock()
	metrics.AddCachePurged(cacheName, n)
	metrics.SetCacheEntries(cacheName, c.Len())
	return n, nil
}
