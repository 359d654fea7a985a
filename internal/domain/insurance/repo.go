package insurance

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the insurance case, coverage lines, splits, and the
// preauth/claim workflows. Implementations return apperr.NotFound for
// missing preauths/claims and apperr.NotConfigured when the case has no
// insurance configured yet.
type Repository interface {
	UpsertInsurance(ctx context.Context, ic *InsuranceCase) error
	GetInsuranceByCase(ctx context.Context, caseID uuid.UUID) (*InsuranceCase, error)
	ReplaceCoverageLines(ctx context.Context, insuranceID uuid.UUID, lines []*CoverageLine) error
	GetCoverageLines(ctx context.Context, insuranceID uuid.UUID) ([]*CoverageLine, error)

	ReplaceSplit(ctx context.Context, sp *InvoiceSplit) error
	GetSplitsByCase(ctx context.Context, caseID uuid.UUID) ([]*InvoiceSplit, error)

	CreatePreauth(ctx context.Context, p *Preauth) error
	GetPreauthForUpdate(ctx context.Context, id uuid.UUID) (*Preauth, error)
	UpdatePreauth(ctx context.Context, p *Preauth) error
	ListPreauthsByCase(ctx context.Context, caseID uuid.UUID) ([]*Preauth, error)
	AddPreauthEvent(ctx context.Context, e *Event) error
	GetPreauthEvents(ctx context.Context, preauthID uuid.UUID) ([]*Event, error)

	CreateClaim(ctx context.Context, cl *Claim) error
	GetClaimForUpdate(ctx context.Context, id uuid.UUID) (*Claim, error)
	UpdateClaim(ctx context.Context, cl *Claim) error
	ListClaimsByCase(ctx context.Context, caseID uuid.UUID) ([]*Claim, error)
	AddClaimEvent(ctx context.Context, e *Event) error
	GetClaimEvents(ctx context.Context, claimID uuid.UUID) ([]*Event, error)
}
