package invoice

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/db"
)

// Service owns the invoice ledger: line item accumulation, discount
// application, status transitions, and aggregate recomputation. Every
// mutation runs inside a single serializable transaction with the invoice
// row locked, so concurrent terminals never observe or produce drifted
// totals.
type Service struct {
	repo   Repository
	runner db.Runner
}

func NewService(repo Repository, runner db.Runner) *Service {
	return &Service{repo: repo, runner: runner}
}

func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.CaseID == uuid.Nil {
		return apperr.Validation("case_id is required")
	}
	if inv.BillingType == "" {
		inv.BillingType = "general"
	}
	if !validBillingTypes[inv.BillingType] {
		return apperr.Validation("invalid billing_type: %s", inv.BillingType)
	}
	inv.Status = StatusDraft
	return s.repo.Create(ctx, inv)
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error) {
	if _, err := s.repo.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.GetLineItems(ctx, invoiceID)
}

// AddManualItem appends a charge line and recomputes totals.
func (s *Service) AddManualItem(ctx context.Context, invoiceID uuid.UUID, desc string, qty, unitPrice, taxRate float64) (*LineItem, error) {
	if desc == "" {
		return nil, apperr.Validation("description is required")
	}
	if qty <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero")
	}
	if math.IsNaN(unitPrice) || math.IsInf(unitPrice, 0) {
		return nil, apperr.Validation("unit_price must be a finite number")
	}
	if unitPrice < 0 {
		return nil, apperr.Validation("unit_price must not be negative")
	}
	if taxRate < 0 || taxRate > 100 {
		return nil, apperr.Validation("tax_rate must be between 0 and 100")
	}

	var item *LineItem
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}

		taxAmount := qty * unitPrice * taxRate / 100
		li := &LineItem{
			InvoiceID:   invoiceID,
			EntryType:   EntryCharge,
			Description: desc,
			Quantity:    qty,
			UnitPrice:   unitPrice,
			TaxRate:     taxRate,
			TaxAmount:   taxAmount,
			LineTotal:   qty*unitPrice + taxAmount,
			ServiceType: ServiceManual,
		}
		if err := s.repo.AddLineItem(ctx, li); err != nil {
			return err
		}
		item = li
		return s.recomputeTotals(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// AddServiceItem appends a charge line originating from another module's
// service record. Used by the unbilled importer; callers are responsible
// for dedup by UID.
func (s *Service) AddServiceItem(ctx context.Context, invoiceID uuid.UUID, in ServiceItemInput) (*LineItem, error) {
	if !validServiceTypes[in.ServiceType] {
		return nil, apperr.Validation("invalid service_type: %s", in.ServiceType)
	}
	if in.UID == "" {
		return nil, apperr.Validation("service uid is required")
	}
	if in.Amount < 0 || math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return nil, apperr.Validation("amount must be a finite non-negative number")
	}

	var item *LineItem
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}

		taxAmount := in.Amount * in.TaxRate / 100
		uid, refID := in.UID, in.RefID
		li := &LineItem{
			InvoiceID:    invoiceID,
			EntryType:    EntryCharge,
			Description:  in.Label,
			Quantity:     1,
			UnitPrice:    in.Amount,
			TaxRate:      in.TaxRate,
			TaxAmount:    taxAmount,
			LineTotal:    in.Amount + taxAmount,
			ServiceType:  in.ServiceType,
			ServiceUID:   &uid,
			ServiceRefID: &refID,
		}
		if err := s.repo.AddLineItem(ctx, li); err != nil {
			return err
		}
		item = li
		return s.recomputeTotals(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// BilledServiceUIDs returns the dedup key set for the case: service UIDs
// already billed on any non-voided invoice.
func (s *Service) BilledServiceUIDs(ctx context.Context, caseID uuid.UUID) (map[string]bool, error) {
	return s.repo.ServiceUIDsByCase(ctx, caseID)
}

// VoidItem marks a line item voided and recomputes totals. Re-voiding is an
// error, not a no-op: callers must check state first.
func (s *Service) VoidItem(ctx context.Context, invoiceID, lineID uuid.UUID, reason string) error {
	if reason == "" {
		return apperr.Validation("void reason is required")
	}
	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		li, err := s.repo.GetLineItem(ctx, invoiceID, lineID)
		if err != nil {
			return err
		}
		if li.IsVoided {
			return apperr.AlreadyVoided("line item %s is already voided", lineID)
		}
		if err := s.repo.VoidLineItem(ctx, lineID, reason); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, inv)
	})
}

// ApplyPercentDiscount appends a discount entry worth percent of the
// invoice's gross at the time of the call. Sequential discounts deliberately
// compound against the live, already-discounted gross.
func (s *Service) ApplyPercentDiscount(ctx context.Context, invoiceID uuid.UUID, percent float64, remarks, authorizedBy string) (*LineItem, error) {
	if percent <= 0 || percent > 100 {
		return nil, apperr.Validation("percent must be greater than 0 and at most 100")
	}
	return s.applyDiscount(ctx, invoiceID, remarks, authorizedBy, func(gross float64) (float64, error) {
		return gross * percent / 100, nil
	}, fmt.Sprintf("%g%% discount", percent))
}

// ApplyAmountDiscount appends a fixed-amount discount entry, bounded by the
// invoice's current gross.
func (s *Service) ApplyAmountDiscount(ctx context.Context, invoiceID uuid.UUID, amount float64, remarks, authorizedBy string) (*LineItem, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperr.Validation("amount must be a positive finite number")
	}
	return s.applyDiscount(ctx, invoiceID, remarks, authorizedBy, func(gross float64) (float64, error) {
		if amount > gross {
			return 0, apperr.Validation("discount %.2f exceeds invoice gross total %.2f", amount, gross)
		}
		return amount, nil
	}, "discount")
}

func (s *Service) applyDiscount(ctx context.Context, invoiceID uuid.UUID, remarks, authorizedBy string, compute func(gross float64) (float64, error), defaultDesc string) (*LineItem, error) {
	var item *LineItem
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}
		if inv.GrossTotal == 0 {
			return apperr.ZeroAmount("invoice gross total is zero, nothing to discount")
		}

		amount, err := compute(inv.GrossTotal)
		if err != nil {
			return err
		}

		desc := remarks
		if desc == "" {
			desc = defaultDesc
		}
		var authBy *string
		if authorizedBy != "" {
			authBy = &authorizedBy
		}
		li := &LineItem{
			InvoiceID:    invoiceID,
			EntryType:    EntryDiscount,
			Description:  desc,
			Quantity:     1,
			UnitPrice:    -amount,
			LineTotal:    -amount,
			ServiceType:  ServiceManual,
			AuthorizedBy: authBy,
		}
		if err := s.repo.AddLineItem(ctx, li); err != nil {
			return err
		}
		item = li
		return s.recomputeTotals(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Approve moves a draft invoice to approved.
func (s *Service) Approve(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	return s.transition(ctx, invoiceID, StatusDraft, StatusApproved)
}

// Post moves an approved invoice to posted.
func (s *Service) Post(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	return s.transition(ctx, invoiceID, StatusApproved, StatusPosted)
}

func (s *Service) transition(ctx context.Context, invoiceID uuid.UUID, from, to string) (*Invoice, error) {
	var out *Invoice
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != from {
			return apperr.InvalidTransition("cannot move invoice from %s to %s", inv.Status, to)
		}
		inv.Status = to
		if err := s.repo.UpdateStatus(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// VoidInvoice voids the invoice and cascades the void to every non-voided
// line item. Voided invoices are terminal but retained for audit.
func (s *Service) VoidInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) (*Invoice, error) {
	if reason == "" {
		return nil, apperr.Validation("void reason is required")
	}
	var out *Invoice
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusVoided {
			return apperr.AlreadyVoided("invoice %s is already voided", invoiceID)
		}
		if err := s.repo.VoidAllLineItems(ctx, invoiceID, reason); err != nil {
			return err
		}
		inv.Status = StatusVoided
		inv.VoidReason = &reason
		if err := s.repo.UpdateStatus(ctx, inv); err != nil {
			return err
		}
		if err := s.recomputeTotals(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// ApplyPaymentDelta adjusts amount_paid and recomputes balance_due. Called
// by the payment ledger inside its own transaction scope; the nested
// WithinTx reuses that transaction.
func (s *Service) ApplyPaymentDelta(ctx context.Context, invoiceID uuid.UUID, delta float64) error {
	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}
		inv.AmountPaid += delta
		return s.recomputeTotals(ctx, inv)
	})
}

// ApplyAdvanceDelta adjusts advance_applied and recomputes balance_due.
func (s *Service) ApplyAdvanceDelta(ctx context.Context, invoiceID uuid.UUID, delta float64) error {
	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}
		inv.AdvanceApplied += delta
		return s.recomputeTotals(ctx, inv)
	})
}

// recomputeTotals rebuilds the denormalized aggregates from the non-voided
// line set. gross_total includes discount entries (they carry negative
// totals); net equals gross because tax is embedded per line. A negative
// balance_due signals overpayment and is surfaced, never clamped.
func (s *Service) recomputeTotals(ctx context.Context, inv *Invoice) error {
	items, err := s.repo.GetLineItems(ctx, inv.ID)
	if err != nil {
		return err
	}

	var gross, tax float64
	for _, li := range items {
		if li.IsVoided {
			continue
		}
		gross += li.LineTotal
		tax += li.TaxAmount
	}

	inv.GrossTotal = gross
	inv.TaxTotal = tax
	inv.NetTotal = gross
	inv.BalanceDue = inv.NetTotal - inv.AmountPaid - inv.AdvanceApplied
	return s.repo.UpdateTotals(ctx, inv)
}

func ensureMutable(inv *Invoice) error {
	if inv.Status == StatusVoided {
		return apperr.InvalidState("invoice %s is voided", inv.ID)
	}
	return nil
}
