package repository

import (
	"context"

	"stream-resolver/internal/domain"
)

// ResolutionRepository persists successful resolutions for history and
// debugging. Writes are best-effort from the coordinator's point of view.
type ResolutionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, rec *domain.ResolutionRecord) (int64, error)
	List(ctx context.Context, limit int) ([]domain.ResolutionRecord, error)
	ListByRequester(ctx context.Context, requester string, limit int) ([]domain.ResolutionRecord, error)
}
