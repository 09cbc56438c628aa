package repository

import (
	"context"

	"safe-room-chat/internal/domain/model"
)

// ReputationCache stores successful URL assessments. Get returns
// domain.ErrCacheMiss when the URL is absent. Expiry is checked by the caller and
// expired entries are overwritten by the next Set.
type ReputationCache interface {
	Get(ctx context.Context, url string) (*model.ReputationCacheEntry, error)
	Set(ctx context.Context, entry *model.ReputationCacheEntry) error
}
