//go:build !integration

// File: internal/infra/sched/cache_janitor_test.go
package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/infra/memcache"
)

var testLogger = zerolog.Nop()

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int, error) {
	p.calls.Add(1)
	return 0, p.err
}

func TestCacheJanitor_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("should purge expired entries of the memory cache", func(t *testing.T) {
		// Arrange
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		clk := clockwork.NewFakeClockAt(now)
		cache := memcache.NewReputationCache(clk)
		_ = cache.Set(ctx, &model.ReputationCacheEntry{URL: "http://old.com", ExpiresAt: now.Add(time.Minute)})
		_ = cache.Set(ctx, &model.ReputationCacheEntry{URL: "http://new.com", ExpiresAt: now.Add(time.Hour)})
		clk.Advance(5 * time.Minute)
		j := NewCacheJanitor(time.Minute, cache, &testLogger)

		// Act
		n := j.Sweep(ctx)

		// Assert
		if n != 1 || cache.Len() != 1 {
			t.Fatalf("purged=%d remaining=%d", n, cache.Len())
		}
	})

	t.Run("should swallow purge errors", func(t *testing.T) {
		j := NewCacheJanitor(time.Minute, &countingPurger{err: errors.New("boom")}, &testLogger)

		if n := j.Sweep(ctx); n != 0 {
			t.Fatalf("n = %d", n)
		}
	})
}

func TestCacheJanitor_Run(t *testing.T) {
	t.Run("should sweep on schedule until cancelled", func(t *testing.T) {
		// Arrange
		p := &countingPurger{}
		j := NewCacheJanitor(20*time.Millisecond, p, &testLogger)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		// Act
		go func() { done <- j.Run(ctx) }()
		deadline := time.Now().Add(2 * time.Second)
		for p.calls.Load() < 2 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()

		// Assert
		if p.calls.Load() < 2 {
			t.Fatalf("janitor ran %d times", p.calls.Load())
		}
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("err = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("janitor did not stop")
		}
	})
}
