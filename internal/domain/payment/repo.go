package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists payments and advances. Implementations return
// apperr.NotFound for missing rows.
type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
	ListPaymentsByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Payment, int, error)

	CreateAdvance(ctx context.Context, a *Advance) error
	// GetAdvanceForUpdate locks the advance row for the duration of the
	// enclosing transaction.
	GetAdvanceForUpdate(ctx context.Context, id uuid.UUID) (*Advance, error)
	UpdateAdvanceBalance(ctx context.Context, a *Advance) error
	ListAdvancesByCase(ctx context.Context, caseID uuid.UUID) ([]*Advance, error)
}
