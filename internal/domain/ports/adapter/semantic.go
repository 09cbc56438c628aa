package adapter

import (
	"context"

	"safe-room-chat/internal/domain/model"
)

// SemanticValidator is the port for the optional remote classification pass.
// A response that is not a JSON verdict must be reported as an error, never as
// a verdict.
type SemanticValidator interface {
	Name() string
	Validate(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error)
}
