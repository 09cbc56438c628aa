package ai

import (
	"context"

	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.SemanticValidator = (*limitedValidator)(nil)

type limitedValidator struct {
	inner adapter.SemanticValidator
	sem   chan struct{}
}

// NewLimitedValidator caps in-flight calls to inner. Waiting for a slot
// respects ctx, so a queued call still honours the stage timeout.
func NewLimitedValidator(inner adapter.SemanticValidator, maxConcurrent int) adapter.SemanticValidator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedValidator{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedValidator) Name() string { return l.inner.Name() }

func (l *limitedValidator) Validate(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return model.SemanticVerdict{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Validate(ctx, req)
}
