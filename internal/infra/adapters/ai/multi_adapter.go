// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
)

var _ adapter.SemanticValidator = (*MultiValidator)(nil)

// MultiValidator asks providers in order and returns the first verdict.
// A context error stops the chain since every later call would fail too.
type MultiValidator struct {
	chain []adapter.SemanticValidator
}

func NewMultiValidator(chain ...adapter.SemanticValidator) *MultiValidator {
	out := make([]adapter.SemanticValidator, 0, len(chain))
	for _, v := range chain {
		if v != nil {
			out = append(out, v)
		}
	}
	return &MultiValidator{chain: out}
}

func (m *MultiValidator) Name() string {
	names := make([]string, 0, len(m.chain))
	for _, v := range m.chain {
		names = append(names, v.Name())
	}
	return strings.Join(names, "+")
}

func (m *MultiValidator) Validate(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error) {
	var errs []error
	for _, v := range m.chain {
		verdict, err := v.Validate(ctx, req)
		if err == nil {
			return verdict, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return model.SemanticVerdict{}, errors.New("no semantic validator configured")
	}
	return model.SemanticVerdict{}, errors.Join(errs...)
}
