package cases

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists billing cases. Implementations return apperr.NotFound
// for missing rows.
type Repository interface {
	Create(ctx context.Context, cs *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	Update(ctx context.Context, cs *Case) error
	List(ctx context.Context, uhid string, limit, offset int) ([]*Case, int, error)
}
