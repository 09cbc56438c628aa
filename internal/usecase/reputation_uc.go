// File: internal/usecase/reputation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
	"safe-room-chat/internal/domain/ports/repository"
	"safe-room-chat/internal/infra/metrics"
)

const DefaultReputationTTL = time.Hour

// Compile-time check
var _ ReputationUseCase = (*reputationUC)(nil)

// ReputationUseCase scores URLs against the reputation source with a TTL cache.
type ReputationUseCase interface {
	Lookup(ctx context.Context, url string) (model.ThreatAssessment, error)
}

type ReputationOptions struct {
	Threshold model.ThreatLevel
	TTL       time.Duration
	Timeout   time.Duration
}

type reputationUC struct {
	cache  repository.ReputationCache
	source adapter.ReputationSource
	opts   ReputationOptions
	clock  clockwork.Clock
	group  singleflight.Group
	log    zerolog.Logger
}

func NewReputationUseCase(cache repository.ReputationCache, source adapter.ReputationSource, opts ReputationOptions, clock clockwork.Clock, logger *zerolog.Logger) *reputationUC {
	if opts.TTL <= 0 {
		opts.TTL = DefaultReputationTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &reputationUC{
		cache:  cache,
		source: source,
		opts:   opts,
		clock:  clock,
		log:    logger.With().Str("component", "ReputationUC").Logger(),
	}
}

// Lookup serves a valid cache entry or queries the source once per URL even
// under concurrent callers. Failures are returned and never cached.
func (r *reputationUC) Lookup(ctx context.Context, url string) (model.ThreatAssessment, error) {
	if a, ok := r.cached(ctx, url); ok {
		metrics.IncReputationLookup("hit")
		return a, nil
	}

	v, err, _ := r.group.Do(url, func() (interface{}, error) {
		// a concurrent flight may have just filled the cache
		if a, ok := r.cached(ctx, url); ok {
			return a, nil
		}
		return r.fetch(ctx, url)
	})
	if err != nil {
		metrics.IncReputationLookup("error")
		return model.ThreatAssessment{}, err
	}
	metrics.IncReputationLookup("miss")
	return v.(model.ThreatAssessment), nil
}

func (r *reputationUC) cached(ctx context.Context, url string) (model.ThreatAssessment, bool) {
	entry, err := r.cache.Get(ctx, url)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			r.log.Warn().Err(err).Msg("reputation cache read failed")
		}
		return model.ThreatAssessment{}, false
	}
	// An expired entry is left in place: the next Set overwrites it and the
	// janitor or the backend TTL removes it otherwise.
	if !entry.Valid(r.clock.Now()) {
		return model.ThreatAssessment{}, false
	}
	return entry.Assessment, true
}

func (r *reputationUC) fetch(ctx context.Context, url string) (model.ThreatAssessment, error) {
	// The flight is shared, so one caller's cancellation must not fail the others.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.Timeout)
	defer cancel()

	start := time.Now()
	report, err := r.source.Lookup(cctx, url)
	metrics.ObserveRemoteCall(r.source.Name(), time.Since(start), err == nil)
	if err != nil {
		return model.ThreatAssessment{}, fmt.Errorf("reputation lookup: %w", err)
	}
	if report.URL == "" {
		report.URL = url
	}

	assessment := model.NewThreatAssessment(report, r.opts.Threshold)
	now := r.clock.Now()
	entry := &model.ReputationCacheEntry{
		URL:        url,
		Assessment: assessment,
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.opts.TTL),
	}
	if err := r.cache.Set(ctx, entry); err != nil {
		r.log.Warn().Err(err).Msg("reputation cache write failed")
	}
	r.log.Debug().
		Str("level", assessment.Level.String()).
		Float64("score", assessment.Score).
		Bool("should_block", assessment.ShouldBlock).
		Msg("url scored")
	return assessment, nil
}
