// File: internal/infra/redis/reputation_cache.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/repository"
	"safe-room-chat/internal/infra/metrics"
)

const cacheName = "reputation_redis"

var _ repository.ReputationCache = (*ReputationCache)(nil)

// ReputationCache keeps assessments in redis with a key TTL matching the
// entry's expiry, so stale entries disappear without a janitor.
type ReputationCache struct {
	client RedisClient
	clock  clockwork.Clock
	log    *zerolog.Logger
}

func NewReputationCache(client RedisClient, clock clockwork.Clock, logger *zerolog.Logger) *ReputationCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := logger.With().Str("component", "RedisReputationCache").Logger()
	return &ReputationCache{client: client, clock: clock, log: &l}
}

func ReputationKey(url string) string { return "reputation:" + url }

func (c *ReputationCache) Get(ctx context.Context, url string) (*model.ReputationCacheEntry, error) {
	val, err := c.client.Get(ctx, ReputationKey(url))
	if errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest(cacheName, "miss")
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		metrics.IncCacheRequest(cacheName, "error")
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry model.ReputationCacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		// Unreadable entries are dropped and treated as absent.
		c.log.Warn().Err(err).Str("url", url).Msg("discarding undecodable cache entry")
		_ = c.client.Del(ctx, ReputationKey(url))
		metrics.IncCacheRequest(cacheName, "miss")
		return nil, domain.ErrCacheMiss
	}
	metrics.IncCacheRequest(cacheName, "hit")
	return &entry, nil
}

func (c *ReputationCache) Set(ctx context.Context, entry *model.ReputationCacheEntry) error {
	ttl := entry.ExpiresAt.Sub(c.clock.Now())
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.client.Set(ctx, ReputationKey(entry.URL), b, ttl)
}
