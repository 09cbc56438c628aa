package adapter

import (
	"context"

	"safe-room-chat/internal/domain/model"
)

// ReputationSource is the port for the external URL reputation service.
// Non-200 answers and undecodable bodies must come back as errors.
type ReputationSource interface {
	Name() string
	Lookup(ctx context.Context, url string) (model.ReputationReport, error)
}
