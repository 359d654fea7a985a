package payment

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/db"
)

// Ledger is the slice of the invoice service the payment ledger mutates.
// Deltas run inside the payment transaction so invoice aggregates and the
// payment row commit together.
type Ledger interface {
	ApplyPaymentDelta(ctx context.Context, invoiceID uuid.UUID, delta float64) error
	ApplyAdvanceDelta(ctx context.Context, invoiceID uuid.UUID, delta float64) error
}

// Service records payments and advances and keeps invoice balances in step.
type Service struct {
	repo   Repository
	ledger Ledger
	runner db.Runner
}

func NewService(repo Repository, ledger Ledger, runner db.Runner) *Service {
	return &Service{repo: repo, ledger: ledger, runner: runner}
}

// AddPayment records a receipt and bumps the invoice's amount_paid.
// Overpayment is allowed: balance_due goes negative and the caller decides
// policy.
func (s *Service) AddPayment(ctx context.Context, caseID, invoiceID uuid.UUID, amount float64, mode, referenceNo string) (*Payment, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if mode == "" {
		mode = ModeCash
	}
	if !validModes[mode] {
		return nil, apperr.Validation("invalid payment mode: %s", mode)
	}
	if invoiceID == uuid.Nil {
		return nil, apperr.Validation("invoice_id is required")
	}

	var refNo *string
	if referenceNo != "" {
		refNo = &referenceNo
	}
	p := &Payment{CaseID: caseID, InvoiceID: invoiceID, Amount: amount, Mode: mode, ReferenceNo: refNo}

	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreatePayment(ctx, p); err != nil {
			return err
		}
		return s.ledger.ApplyPaymentDelta(ctx, invoiceID, amount)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AddPayerCredit records a settlement credit from a payer against an
// invoice. Called by the claim workflow inside its settlement transaction.
func (s *Service) AddPayerCredit(ctx context.Context, caseID, invoiceID uuid.UUID, amount float64, referenceNo string) (*Payment, error) {
	return s.AddPayment(ctx, caseID, invoiceID, amount, ModeCredit, referenceNo)
}

// DeletePayment reverses a receipt and recomputes the invoice balance.
func (s *Service) DeletePayment(ctx context.Context, paymentID uuid.UUID) error {
	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := s.repo.DeletePayment(ctx, paymentID); err != nil {
			return err
		}
		return s.ledger.ApplyPaymentDelta(ctx, p.InvoiceID, -p.Amount)
	})
}

func (s *Service) ListPayments(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return s.repo.ListPaymentsByCase(ctx, caseID, limit, offset)
}

// CreateAdvance opens a pre-paid balance against the case.
func (s *Service) CreateAdvance(ctx context.Context, caseID uuid.UUID, amount float64) (*Advance, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	a := &Advance{CaseID: caseID, Amount: amount, BalanceRemaining: amount}
	if err := s.repo.CreateAdvance(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ApplyAdvance consumes part of an advance against an invoice. This is the
// only mutation path for balance_remaining; the balance check happens with
// the row locked so it can never go negative.
func (s *Service) ApplyAdvance(ctx context.Context, advanceID, invoiceID uuid.UUID, amount float64) (*Advance, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperr.Validation("amount must be greater than zero")
	}

	var out *Advance
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetAdvanceForUpdate(ctx, advanceID)
		if err != nil {
			return err
		}
		if amount > a.BalanceRemaining {
			return apperr.InsufficientAdvance("advance balance %.2f is less than requested %.2f",
				a.BalanceRemaining, amount)
		}
		a.BalanceRemaining -= amount
		if err := s.repo.UpdateAdvanceBalance(ctx, a); err != nil {
			return err
		}
		if err := s.ledger.ApplyAdvanceDelta(ctx, invoiceID, amount); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListAdvances(ctx context.Context, caseID uuid.UUID) ([]*Advance, error) {
	return s.repo.ListAdvancesByCase(ctx, caseID)
}
