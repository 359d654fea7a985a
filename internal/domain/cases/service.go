package cases

import (
	"context"

	"github.com/google/uuid"

	"github.com/hims/billing/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateCase(ctx context.Context, cs *Case) error {
	if cs.UHID == "" {
		return apperr.Validation("uhid is required")
	}
	if cs.PatientName == "" {
		return apperr.Validation("patient_name is required")
	}
	if cs.BillingContext == "" {
		cs.BillingContext = "op"
	}
	if !validContexts[cs.BillingContext] {
		return apperr.Validation("invalid billing_context: %s", cs.BillingContext)
	}
	cs.Status = StatusOpen
	return s.repo.Create(ctx, cs)
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListCases(ctx context.Context, uhid string, limit, offset int) ([]*Case, int, error) {
	return s.repo.List(ctx, uhid, limit, offset)
}

// CloseCase marks an open case closed. Closing is an administrative action;
// it does not require a zero balance.
func (s *Service) CloseCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	cs, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cs.Status != StatusOpen {
		return nil, apperr.InvalidTransition("cannot close a %s case", cs.Status)
	}
	cs.Status = StatusClosed
	if err := s.repo.Update(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}
