//go:build !integration

// File: internal/infra/redis/rate_limiter_test.go
package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("should set the window on the first hit and block past the limit", func(t *testing.T) {
		// Arrange
		counts := map[string]int64{}
		var expired []time.Duration
		mock := &mockRedisClient{
			IncrFunc: func(_ context.Context, key string) (int64, error) {
				counts[key]++
				return counts[key], nil
			},
			ExpireFunc: func(_ context.Context, _ string, d time.Duration) error {
				expired = append(expired, d)
				return nil
			},
		}
		rl := NewRateLimiter(mock)

		// Act
		var results []bool
		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, "rate_limit:general:alice", 2, 10*time.Second)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			results = append(results, ok)
		}

		// Assert
		if !results[0] || !results[1] || results[2] {
			t.Fatalf("results = %v, want [true true false]", results)
		}
		if len(expired) != 1 || expired[0] != 10*time.Second {
			t.Errorf("expire calls = %v", expired)
		}
	})

	t.Run("should surface redis errors", func(t *testing.T) {
		mock := &mockRedisClient{IncrFunc: func(context.Context, string) (int64, error) {
			return 0, errors.New("connection refused")
		}}

		ok, err := NewRateLimiter(mock).Allow(ctx, "k", 1, time.Second)

		if err == nil || ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
	})
}
