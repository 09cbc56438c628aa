// File: internal/infra/sched/cache_janitor.go
package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Purger drops expired entries and reports how many were removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// CacheJanitor periodically purges expired reputation cache entries so URLs
// that are never looked up again do not accumulate.
type CacheJanitor struct {
	interval time.Duration
	purger   Purger
	log      *zerolog.Logger
}

func NewCacheJanitor(interval time.Duration, purger Purger, logger *zerolog.Logger) *CacheJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	l := logger.With().Str("component", "CacheJanitor").Logger()
	return &CacheJanitor{interval: interval, purger: purger, log: &l}
}

// Sweep runs one purge pass.
func (j *CacheJanitor) Sweep(ctx context.Context) int {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("cache purge failed")
		return 0
	}
	if n > 0 {
		j.log.Info().Int("count", n).Msg("expired cache entries purged")
	}
	return n
}

// Run schedules Sweep every interval and blocks until ctx is done.
func (j *CacheJanitor) Run(ctx context.Context) error {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(gocronLogger{log: j.log}),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() { j.Sweep(ctx) }),
		gocron.WithName("reputation-cache-janitor"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule janitor: %w", err)
	}

	j.log.Info().Dur("interval", j.interval).Msg("Starting cache janitor")
	s.Start()
	<-ctx.Done()
	j.log.Info().Msg("Stopping cache janitor")
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return ctx.Err()
}

// gocronLogger routes scheduler logs into zerolog.
type gocronLogger struct{ log *zerolog.Logger }

func (g gocronLogger) Debug(msg string, args ...any) { g.log.Debug().Fields(args).Msg(msg) }
func (g gocronLogger) Info(msg string, args ...any)  { g.log.Info().Fields(args).Msg(msg) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.log.Warn().Fields(args).Msg(msg) }
func (g gocronLogger) Error(msg string, args ...any) { g.log.Error().Fields(args).Msg(msg) }
