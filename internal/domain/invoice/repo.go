package invoice

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists invoices and their line items. Implementations must
// return apperr.NotFound for missing rows so services can surface typed
// errors without inspecting driver sentinels.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetByIDForUpdate locks the invoice row for the duration of the
	// enclosing transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	UpdateTotals(ctx context.Context, inv *Invoice) error
	UpdateStatus(ctx context.Context, inv *Invoice) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Invoice, int, error)

	AddLineItem(ctx context.Context, li *LineItem) error
	GetLineItem(ctx context.Context, invoiceID, lineID uuid.UUID) (*LineItem, error)
	GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error)
	VoidLineItem(ctx context.Context, lineID uuid.UUID, reason string) error
	VoidAllLineItems(ctx context.Context, invoiceID uuid.UUID, reason string) error
	// ServiceUIDsByCase returns the service UIDs present as non-voided line
	// items on any non-voided invoice of the case.
	ServiceUIDsByCase(ctx context.Context, caseID uuid.UUID) (map[string]bool, error)
}
