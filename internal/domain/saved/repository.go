package saved

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists saved analyses. Every method is scoped to userID;
// a row owned by another user behaves as missing.
type Repository interface {
	Create(ctx context.Context, a *SavedAnalysis) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*SavedAnalysis, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]SavedAnalysis, error)
	Recent(ctx context.Context, userID string, limit int) ([]SavedAnalysis, error)
	Update(ctx context.Context, userID string, id uuid.UUID, in UpdateInput) (*SavedAnalysis, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) (bool, error)
	IncrementViewCount(ctx context.Context, userID string, id uuid.UUID) error
}
