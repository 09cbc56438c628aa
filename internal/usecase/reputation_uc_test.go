//go:build !integration

// File: internal/usecase/reputation_uc_test.go
package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"safe-room-chat/internal/domain/model"
)

func newTestReputationUC(src *mockReputationSource, cache *memReputationCache) (*reputationUC, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(epoch)
	uc := NewReputationUseCase(cache, src, ReputationOptions{
		Threshold: model.ThreatLow,
		TTL:       time.Hour,
		Timeout:   time.Second,
	}, clk, &testLogger)
	return uc, clk
}

func statsReport(malicious, suspicious, harmless int) func(context.Context, string) (model.ReputationReport, error) {
	return func(_ context.Context, url string) (model.ReputationReport, error) {
		return model.ReputationReport{URL: url, Stats: model.DetectionStats{
			Malicious: malicious, Suspicious: suspicious, Harmless: harmless,
		}}, nil
	}
}

func TestReputationUseCase_Lookup(t *testing.T) {
	ctx := context.Background()
	const url = "http://example.com"

	t.Run("should classify and flag a malicious url", func(t *testing.T) {
		src := newMockReputationSource(statsReport(6, 0, 94))
		uc, _ := newTestReputationUC(src, newMemReputationCache())

		got, err := uc.Lookup(ctx, url)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Level != model.ThreatHigh || got.Score != 6.0 || !got.ShouldBlock {
			t.Fatalf("unexpected assessment: %+v", got)
		}
	})

	t.Run("should not query the source again within the ttl", func(t *testing.T) {
		// Arrange
		src := newMockReputationSource(statsReport(0, 0, 100))
		uc, clk := newTestReputationUC(src, newMemReputationCache())

		// Act
		_, _ = uc.Lookup(ctx, url)
		clk.Advance(59 * time.Minute)
		_, _ = uc.Lookup(ctx, url)

		// Assert
		if n := src.Calls(url); n != 1 {
			t.Fatalf("source called %d times, want 1", n)
		}
	})

	t.Run("should re-query once the entry expired", func(t *testing.T) {
		src := newMockReputationSource(statsReport(0, 0, 100))
		cache := newMemReputationCache()
		uc, clk := newTestReputationUC(src, cache)

		_, _ = uc.Lookup(ctx, url)
		clk.Advance(time.Hour)
		_, _ = uc.Lookup(ctx, url)

		if n := src.Calls(url); n != 2 {
			t.Fatalf("source called %d times, want 2", n)
		}
		e, _ := cache.Get(ctx, url)
		if !e.Valid(clk.Now()) {
			t.Errorf("expected the expired entry to be replaced by a fresh one")
		}
	})

	t.Run("should keep a fresh entry written while an expired one was read", func(t *testing.T) {
		// Arrange
		src := newMockReputationSource(statsReport(0, 0, 100))
		cache := newMemReputationCache()
		uc, clk := newTestReputationUC(src, cache)
		_, _ = uc.Lookup(ctx, url)
		clk.Advance(2 * time.Hour)
		stale, _ := cache.Get(ctx, url)
		// another flight refreshes the entry before this caller acts on the stale read
		_ = cache.Set(ctx, &model.ReputationCacheEntry{
			URL:        url,
			Assessment: stale.Assessment,
			CreatedAt:  clk.Now(),
			ExpiresAt:  clk.Now().Add(time.Hour),
		})

		// Act
		_, _ = uc.Lookup(ctx, url)

		// Assert
		if n := src.Calls(url); n != 1 {
			t.Fatalf("source called %d times, want 1", n)
		}
		e, err := cache.Get(ctx, url)
		if err != nil || !e.Valid(clk.Now()) {
			t.Fatalf("fresh entry lost: %+v err=%v", e, err)
		}
	})

	t.Run("should not cache failures", func(t *testing.T) {
		// Arrange
		fail := true
		src := newMockReputationSource(func(ctx context.Context, u string) (model.ReputationReport, error) {
			if fail {
				return model.ReputationReport{}, errors.New("status 429")
			}
			return statsReport(0, 0, 10)(ctx, u)
		})
		uc, _ := newTestReputationUC(src, newMemReputationCache())

		// Act
		_, err1 := uc.Lookup(ctx, url)
		fail = false
		got, err2 := uc.Lookup(ctx, url)

		// Assert
		if err1 == nil {
			t.Fatal("first lookup should fail")
		}
		if err2 != nil || got.Level != model.ThreatClean {
			t.Fatalf("second lookup should succeed with CLEAN, got %+v err=%v", got, err2)
		}
		if n := src.Calls(url); n != 2 {
			t.Fatalf("source called %d times, want 2", n)
		}
	})

	t.Run("should collapse concurrent lookups of one url", func(t *testing.T) {
		// Arrange
		release := make(chan struct{})
		src := newMockReputationSource(func(ctx context.Context, u string) (model.ReputationReport, error) {
			<-release
			return statsReport(0, 0, 1)(ctx, u)
		})
		uc, _ := newTestReputationUC(src, newMemReputationCache())

		// Act
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = uc.Lookup(ctx, url)
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		// Assert
		if n := src.Calls(url); n < 1 || n > 2 {
			t.Fatalf("source called %d times, expected the flights to collapse", n)
		}
	})
}
