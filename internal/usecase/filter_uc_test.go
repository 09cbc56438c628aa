//go:build !integration

// File: internal/usecase/filter_uc_test.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
)

func cookingPolicy() Policy {
	return Policy{
		Include:         []string{"cake", "chocolate"},
		Exclude:         []string{"recipe", "preheat the oven"},
		IncludeRequired: true,
		Mode:            ModeAuto,
	}
}

func remoteVerdict(v model.SemanticVerdict) *mockSemanticValidator {
	return &mockSemanticValidator{ValidateFunc: func(context.Context, model.SemanticRequest) (model.SemanticVerdict, error) {
		return v, nil
	}}
}

func TestFilterUseCase_LocalPass(t *testing.T) {
	ctx := context.Background()
	uc := NewFilterUseCase(nil, nil, FilterOptions{Enabled: true, Policy: cookingPolicy()}, &testLogger)

	tests := []struct {
		name    string
		text    string
		policy  Policy
		allowed bool
		reason  string
	}{
		{
			name:    "should allow when an include term is present",
			text:    "I love   CHOCOLATE",
			policy:  Policy{Include: []string{"chocolate"}, IncludeRequired: true, Mode: ModeLocal},
			allowed: true,
			reason:  "Included terms present and no excluded terms found.",
		},
		{
			name:    "should block when includes are required and none matched",
			text:    "hello there",
			policy:  Policy{Include: []string{"chocolate"}, IncludeRequired: true, Mode: ModeLocal},
			allowed: false,
			reason:  "No include terms found.",
		},
		{
			name:    "should let exclude win over include",
			text:    "chocolate cake recipe",
			policy:  Policy{Include: []string{"cake"}, Exclude: []string{"recipe"}, IncludeRequired: true, Mode: ModeLocal},
			allowed: false,
			reason:  "Found excluded terms.",
		},
		{
			name:    "should allow anything without excludes when include is optional",
			text:    "random words",
			policy:  Policy{Exclude: []string{"recipe"}, Mode: ModeLocal},
			allowed: true,
			reason:  "No excluded terms found.",
		},
		{
			name:    "should match multi word excludes as substrings",
			text:    "First, Preheat   the oven.",
			policy:  Policy{Exclude: []string{"preheat the oven"}, Mode: ModeLocal},
			allowed: false,
			reason:  "Found excluded terms.",
		},
		{
			name:    "should match a phrase split by a no-break space",
			text:    "preheat\u00a0the oven",
			policy:  Policy{Exclude: []string{"preheat the oven"}, Mode: ModeLocal},
			allowed: false,
			reason:  "Found excluded terms.",
		},
		{
			name:    "should match a phrase split by em spaces",
			text:    "preheat\u2003the\u2003oven",
			policy:  Policy{Exclude: []string{"preheat the oven"}, Mode: ModeLocal},
			allowed: false,
			reason:  "Found excluded terms.",
		},
		{
			name:    "should match a phrase split by a vertical tab",
			text:    "preheat\vthe oven",
			policy:  Policy{Exclude: []string{"preheat the oven"}, Mode: ModeLocal},
			allowed: false,
			reason:  "Found excluded terms.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := uc.Detect(ctx, tc.text, tc.policy)

			if d.Allowed != tc.allowed {
				t.Fatalf("Allowed = %v, want %v (%+v)", d.Allowed, tc.allowed, d)
			}
			if d.Reason != tc.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tc.reason)
			}
			if d.Source != model.SourceLocalOnly {
				t.Errorf("Source = %q, want local-only", d.Source)
			}
		})
	}
}

func TestFilterUseCase_RemotePass(t *testing.T) {
	ctx := context.Background()

	t.Run("should not call the validator when the local pass blocks", func(t *testing.T) {
		v := remoteVerdict(model.SemanticVerdict{Match: true})
		uc := NewFilterUseCase(nil, v, FilterOptions{Enabled: true, Policy: cookingPolicy()}, &testLogger)

		d := uc.Evaluate(ctx, "cake recipe")

		if d.Allowed || v.Calls() != 0 {
			t.Fatalf("expected local block without remote call, got %+v calls=%d", d, v.Calls())
		}
	})

	t.Run("should merge remote exclude hits and block", func(t *testing.T) {
		// Arrange
		v := remoteVerdict(model.SemanticVerdict{
			Match:       false,
			ExcludeHits: []string{"Baking Instructions"},
			Reason:      "Looks like a how-to.",
		})
		uc := NewFilterUseCase(nil, v, FilterOptions{Enabled: true, Policy: cookingPolicy()}, &testLogger)

		// Act
		d := uc.Evaluate(ctx, "mix the chocolate and bake 20 minutes")

		// Assert
		if d.Allowed {
			t.Fatalf("expected block, got %+v", d)
		}
		if d.Source != model.SourceLocalThenRemote {
			t.Errorf("Source = %q", d.Source)
		}
		if len(d.ExcludeHits) != 1 || d.ExcludeHits[0] != "baking instructions" {
			t.Errorf("ExcludeHits = %v", d.ExcludeHits)
		}
		if d.Reason != "Found excluded terms: baking instructions" {
			t.Errorf("Reason = %q", d.Reason)
		}
	})

	t.Run("should allow when the remote finds nothing excluded", func(t *testing.T) {
		v := remoteVerdict(model.SemanticVerdict{Match: true, IncludeHits: []string{"cake"}, Reason: "Talks about cake."})
		uc := NewFilterUseCase(nil, v, FilterOptions{Enabled: true, Policy: cookingPolicy()}, &testLogger)

		d := uc.Evaluate(ctx, "this chocolate is great")

		if !d.Allowed || d.Reason != "Talks about cake." {
			t.Fatalf("unexpected decision: %+v", d)
		}
		if strings.Join(d.IncludeHits, ",") != "cake,chocolate" {
			t.Errorf("IncludeHits = %v", d.IncludeHits)
		}
	})

	t.Run("should send normalized text and terms", func(t *testing.T) {
		v := remoteVerdict(model.SemanticVerdict{Match: true})
		uc := NewFilterUseCase(nil, v, FilterOptions{Enabled: true, Policy: cookingPolicy()}, &testLogger)

		_ = uc.Evaluate(ctx, "  Chocolate\n\nIS  nice ")

		if v.lastReq.Text != "chocolate is nice" || !v.lastReq.RequireInclude {
			t.Fatalf("unexpected request: %+v", v.lastReq)
		}
	})

	t.Run("should fall back to the local decision on remote error", func(t *testing.T) {
		// Arrange
		v := &mockSemanticValidator{ValidateFunc: func(context.Context, model.SemanticRequest) (model.SemanticVerdict, error) {
			return model.SemanticVerdict{}, errors.New("deadline exceeded")
		}}
		uc := NewFilterUseCase(nil, v, FilterOptions{Enabled: true, Policy: cookingPolicy()}, &testLogger)

		// Act
		d := uc.Evaluate(ctx, "chocolate")

		// Assert
		if !d.Allowed {
			t.Fatalf("remote failure must not block: %+v", d)
		}
		if d.Source != model.SourceRemoteErrorFallback || d.RemoteError == "" {
			t.Errorf("expected fallback source with error, got %+v", d)
		}
		if !strings.HasSuffix(d.Reason, "Included terms present and no excluded terms found.") {
			t.Errorf("Reason = %q", d.Reason)
		}
	})

	t.Run("should block on remote error when configured fail closed", func(t *testing.T) {
		v := &mockSemanticValidator{ValidateFunc: func(context.Context, model.SemanticRequest) (model.SemanticVerdict, error) {
			return model.SemanticVerdict{}, errors.New("boom")
		}}
		uc := NewFilterUseCase(nil, v, FilterOptions{Enabled: true, Policy: cookingPolicy(), FailClosed: true}, &testLogger)

		d := uc.Evaluate(ctx, "chocolate")

		if d.Allowed || d.Source != model.SourceRemoteErrorFallback {
			t.Fatalf("expected fail-closed block, got %+v", d)
		}
	})

	t.Run("should skip the remote stage in local mode", func(t *testing.T) {
		v := remoteVerdict(model.SemanticVerdict{ExcludeHits: []string{"x"}})
		uc := NewFilterUseCase(nil, v, FilterOptions{Enabled: true}, &testLogger)

		d, dbg := uc.Detect(ctx, "Some Text", Policy{Mode: ModeLocal, Include: []string{" Some "}})

		if !d.Allowed || v.Calls() != 0 {
			t.Fatalf("expected local allow without remote call")
		}
		if dbg.TextNorm != "some text" || dbg.IncludeAnyNorm[0] != "some" {
			t.Errorf("unexpected debug: %+v", dbg)
		}
	})
}

func TestFilterUseCase_URLScan(t *testing.T) {
	ctx := context.Background()

	newUC := func(src *mockReputationSource, v *mockSemanticValidator) *filterUC {
		rep, _ := newTestReputationUC(src, newMemReputationCache())
		var validator adapter.SemanticValidator
		if v != nil {
			validator = v
		}
		return NewFilterUseCase(rep, validator, FilterOptions{Enabled: true, Policy: cookingPolicy()}, &testLogger)
	}

	t.Run("should block a message with a malicious url before the remote stage", func(t *testing.T) {
		// Arrange
		src := newMockReputationSource(func(_ context.Context, u string) (model.ReputationReport, error) {
			if strings.Contains(u, "evil") {
				return model.ReputationReport{URL: u, Stats: model.DetectionStats{Malicious: 6, Harmless: 94}}, nil
			}
			return model.ReputationReport{URL: u, Stats: model.DetectionStats{Harmless: 100}}, nil
		})
		v := remoteVerdict(model.SemanticVerdict{Match: true})
		uc := newUC(src, v)

		// Act
		d := uc.Evaluate(ctx, "chocolate at good.com and evil.example.com")

		// Assert
		if d.Allowed || d.Source != model.SourceURLReputation {
			t.Fatalf("expected url block, got %+v", d)
		}
		if !strings.Contains(d.Reason, "http://evil.example.com") || !strings.Contains(d.Reason, "HIGH") {
			t.Errorf("Reason = %q", d.Reason)
		}
		if v.Calls() != 0 {
			t.Errorf("semantic stage must not run for a url-blocked message")
		}
	})

	t.Run("should treat an unreachable reputation source as unknown", func(t *testing.T) {
		src := newMockReputationSource(func(context.Context, string) (model.ReputationReport, error) {
			return model.ReputationReport{}, errors.New("connection refused")
		})
		uc := newUC(src, nil)

		d := uc.Evaluate(ctx, "chocolate at example.com")

		if !d.Allowed {
			t.Fatalf("lookup failure must not block: %+v", d)
		}
		if len(d.URLs) != 1 || d.URLs[0].Error == "" {
			t.Errorf("expected the failure recorded on the finding, got %+v", d.URLs)
		}
	})

	t.Run("should evaluate duplicate urls once per occurrence", func(t *testing.T) {
		src := newMockReputationSource(func(_ context.Context, u string) (model.ReputationReport, error) {
			return model.ReputationReport{URL: u, Stats: model.DetectionStats{Harmless: 1}}, nil
		})
		uc := newUC(src, nil)

		d := uc.Evaluate(ctx, "chocolate example.com example.com")

		if len(d.URLs) != 2 {
			t.Fatalf("expected two findings, got %d", len(d.URLs))
		}
		if src.Calls("http://example.com") > 2 {
			t.Errorf("cache should cap remote calls")
		}
	})
}
