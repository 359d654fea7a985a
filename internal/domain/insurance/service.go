package insurance

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/hims/billing/internal/domain/invoice"
	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/db"
)

// InvoiceSource is the slice of the invoice service the split and
// settlement operations read from.
type InvoiceSource interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
}

// Creditor records payer settlement credits against invoices. Implemented
// by the payment ledger; called inside the settlement transaction.
type Creditor interface {
	AddPayerCredit(ctx context.Context, caseID, invoiceID uuid.UUID, amount float64, referenceNo string) error
}

// Service owns the insurance case, coverage lines, invoice splits, and the
// preauth/claim state machines.
type Service struct {
	repo     Repository
	invoices InvoiceSource
	creditor Creditor
	runner   db.Runner
}

func NewService(repo Repository, invoices InvoiceSource, creditor Creditor, runner db.Runner) *Service {
	return &Service{repo: repo, invoices: invoices, creditor: creditor, runner: runner}
}

// -- insurance case --

// UpsertInsurance creates or replaces the case's insurance configuration
// and its coverage lines in one transaction.
func (s *Service) UpsertInsurance(ctx context.Context, ic *InsuranceCase, lines []*CoverageLine) error {
	if ic.CaseID == uuid.Nil {
		return apperr.Validation("case_id is required")
	}
	if ic.PayerID == "" {
		return apperr.Validation("payer_id is required")
	}
	for _, l := range lines {
		if l.Category == "" {
			return apperr.Validation("coverage line category is required")
		}
		if l.CoveragePct < 0 || l.CoveragePct > 100 {
			return apperr.Validation("coverage_pct must be between 0 and 100")
		}
	}

	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpsertInsurance(ctx, ic); err != nil {
			return err
		}
		return s.repo.ReplaceCoverageLines(ctx, ic.ID, lines)
	})
}

// ConfiguredInsurance is the explicit nullable read result: absence of an
// insurance case is a named state, not an error the caller has to guess
// from a 404.
type ConfiguredInsurance struct {
	Configured bool           `json:"configured"`
	Insurance  *InsuranceCase `json:"insurance,omitempty"`
}

// GetInsurance returns the insurance configuration, soft-failing to the
// "not configured" state when none exists.
func (s *Service) GetInsurance(ctx context.Context, caseID uuid.UUID) (*ConfiguredInsurance, error) {
	ic, err := s.repo.GetInsuranceByCase(ctx, caseID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotConfigured) {
			return &ConfiguredInsurance{Configured: false}, nil
		}
		return nil, err
	}
	return &ConfiguredInsurance{Configured: true, Insurance: ic}, nil
}

// GetLines returns the coverage lines, empty when insurance is not
// configured. The soft-fail contract applies to reads only.
func (s *Service) GetLines(ctx context.Context, caseID uuid.UUID) ([]*CoverageLine, error) {
	ic, err := s.repo.GetInsuranceByCase(ctx, caseID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotConfigured) {
			return []*CoverageLine{}, nil
		}
		return nil, err
	}
	lines, err := s.repo.GetCoverageLines(ctx, ic.ID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []*CoverageLine{}
	}
	return lines, nil
}

// PatchLines replaces the coverage lines. Writes do not soft-fail: patching
// an unconfigured case is an error.
func (s *Service) PatchLines(ctx context.Context, caseID uuid.UUID, patches []LinePatch) ([]*CoverageLine, error) {
	if len(patches) == 0 {
		return nil, apperr.Validation("at least one line patch is required")
	}
	lines := make([]*CoverageLine, 0, len(patches))
	for _, p := range patches {
		if p.Category == "" {
			return nil, apperr.Validation("coverage line category is required")
		}
		if p.CoveragePct < 0 || p.CoveragePct > 100 {
			return nil, apperr.Validation("coverage_pct must be between 0 and 100")
		}
		lines = append(lines, &CoverageLine{Category: p.Category, CoveragePct: p.CoveragePct})
	}

	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		ic, err := s.repo.GetInsuranceByCase(ctx, caseID)
		if err != nil {
			return err
		}
		return s.repo.ReplaceCoverageLines(ctx, ic.ID, lines)
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// -- split --

// SplitInvoices partitions each listed invoice's balance between the payer
// and the patient per the coverage lines. All invoices split in one
// transaction, or none do. Re-splitting a fully paid invoice requires the
// explicit allowPaidSplit override.
func (s *Service) SplitInvoices(ctx context.Context, caseID uuid.UUID, invoiceIDs []uuid.UUID, allowPaidSplit bool) ([]*InvoiceSplit, error) {
	if len(invoiceIDs) == 0 {
		return nil, apperr.Validation("invoice_ids is required")
	}

	var splits []*InvoiceSplit
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		ic, err := s.repo.GetInsuranceByCase(ctx, caseID)
		if err != nil {
			return err
		}
		lines, err := s.repo.GetCoverageLines(ctx, ic.ID)
		if err != nil {
			return err
		}

		splits = splits[:0]
		for _, invID := range invoiceIDs {
			inv, err := s.invoices.GetInvoice(ctx, invID)
			if err != nil {
				return err
			}
			if inv.CaseID != caseID {
				return apperr.Validation("invoice %s does not belong to case %s", invID, caseID)
			}
			if inv.Status == invoice.StatusVoided {
				return apperr.InvalidState("invoice %s is voided", invID)
			}
			if inv.BalanceDue <= 0 && inv.NetTotal > 0 && !allowPaidSplit {
				return apperr.InvalidState("invoice %s is already fully paid; pass allow_paid_split to re-split", invID)
			}

			pct := coverageFor(lines, inv.BillingType)
			payerShare := inv.BalanceDue * pct / 100
			sp := &InvoiceSplit{
				CaseID:       caseID,
				InvoiceID:    invID,
				CoveragePct:  pct,
				PayerShare:   payerShare,
				PatientShare: inv.BalanceDue - payerShare,
			}
			if err := s.repo.ReplaceSplit(ctx, sp); err != nil {
				return err
			}
			splits = append(splits, sp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return splits, nil
}

// coverageFor resolves the coverage percentage for a billing type: an exact
// category match wins, then the "all" fallback, then zero.
func coverageFor(lines []*CoverageLine, billingType string) float64 {
	fallback := 0.0
	for _, l := range lines {
		if l.Category == billingType {
			return l.CoveragePct
		}
		if l.Category == "all" {
			fallback = l.CoveragePct
		}
	}
	return fallback
}

// -- preauth workflow --

func (s *Service) CreatePreauth(ctx context.Context, caseID uuid.UUID, requestedAmount float64, remarks string) (*Preauth, error) {
	if requestedAmount <= 0 || math.IsNaN(requestedAmount) || math.IsInf(requestedAmount, 0) {
		return nil, apperr.Validation("requested_amount must be greater than zero")
	}

	var rem *string
	if remarks != "" {
		rem = &remarks
	}
	p := &Preauth{CaseID: caseID, Status: PreauthDraft, RequestedAmount: requestedAmount, Remarks: rem}

	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetInsuranceByCase(ctx, caseID); err != nil {
			return err
		}
		if err := s.repo.CreatePreauth(ctx, p); err != nil {
			return err
		}
		return s.repo.AddPreauthEvent(ctx, &Event{
			SubjectID: p.ID, FromStatus: "", ToStatus: PreauthDraft, Amount: &requestedAmount,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) SubmitPreauth(ctx context.Context, id uuid.UUID) (*Preauth, error) {
	return s.preauthTransition(ctx, id, []string{PreauthDraft}, PreauthSubmitted, nil, "")
}

// ApprovePreauth approves the full requested amount unless the payer
// communicated a different figure; zero means "as requested".
func (s *Service) ApprovePreauth(ctx context.Context, id uuid.UUID, approvedAmount float64, note string) (*Preauth, error) {
	if approvedAmount < 0 {
		return nil, apperr.Validation("approved_amount must not be negative")
	}
	return s.preauthTransition(ctx, id, []string{PreauthSubmitted}, PreauthApproved, func(p *Preauth) error {
		amt := approvedAmount
		if amt == 0 {
			amt = p.RequestedAmount
		}
		p.ApprovedAmount = &amt
		return nil
	}, note)
}

// PartialApprovePreauth requires the approved amount to be strictly below
// the request; anything else is really a full approve and is rejected.
func (s *Service) PartialApprovePreauth(ctx context.Context, id uuid.UUID, approvedAmount float64, note string) (*Preauth, error) {
	if approvedAmount <= 0 {
		return nil, apperr.Validation("approved_amount must be greater than zero")
	}
	return s.preauthTransition(ctx, id, []string{PreauthSubmitted}, PreauthPartiallyApproved, func(p *Preauth) error {
		if approvedAmount >= p.RequestedAmount {
			return apperr.Validation("partial approval of %.2f must be below the requested %.2f; use approve instead",
				approvedAmount, p.RequestedAmount)
		}
		p.ApprovedAmount = &approvedAmount
		return nil
	}, note)
}

func (s *Service) RejectPreauth(ctx context.Context, id uuid.UUID, note string) (*Preauth, error) {
	return s.preauthTransition(ctx, id, []string{PreauthSubmitted}, PreauthRejected, nil, note)
}

func (s *Service) preauthTransition(ctx context.Context, id uuid.UUID, from []string, to string, mutate func(*Preauth) error, note string) (*Preauth, error) {
	var out *Preauth
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPreauthForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !contains(from, p.Status) {
			return apperr.InvalidTransition("cannot move preauth from %s to %s", p.Status, to)
		}
		fromStatus := p.Status
		if mutate != nil {
			if err := mutate(p); err != nil {
				return err
			}
		}
		p.Status = to
		if err := s.repo.UpdatePreauth(ctx, p); err != nil {
			return err
		}
		e := &Event{SubjectID: p.ID, FromStatus: fromStatus, ToStatus: to, Amount: p.ApprovedAmount}
		if note != "" {
			n := note
			e.Note = &n
		}
		if err := s.repo.AddPreauthEvent(ctx, e); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Service) ListPreauths(ctx context.Context, caseID uuid.UUID) ([]*Preauth, error) {
	return s.repo.ListPreauthsByCase(ctx, caseID)
}

func (s *Service) PreauthHistory(ctx context.Context, id uuid.UUID) ([]*Event, error) {
	return s.repo.GetPreauthEvents(ctx, id)
}

// -- claim workflow --

func (s *Service) CreateClaim(ctx context.Context, caseID uuid.UUID, invoiceIDs []uuid.UUID, remarks string) (*Claim, error) {
	if len(invoiceIDs) == 0 {
		return nil, apperr.Validation("invoice_ids is required")
	}

	var rem *string
	if remarks != "" {
		rem = &remarks
	}
	cl := &Claim{CaseID: caseID, Status: ClaimDraft, InvoiceIDs: invoiceIDs, Remarks: rem}

	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetInsuranceByCase(ctx, caseID); err != nil {
			return err
		}
		for _, invID := range invoiceIDs {
			inv, err := s.invoices.GetInvoice(ctx, invID)
			if err != nil {
				return err
			}
			if inv.CaseID != caseID {
				return apperr.Validation("invoice %s does not belong to case %s", invID, caseID)
			}
		}
		if err := s.repo.CreateClaim(ctx, cl); err != nil {
			return err
		}
		return s.repo.AddClaimEvent(ctx, &Event{SubjectID: cl.ID, FromStatus: "", ToStatus: ClaimDraft})
	})
	if err != nil {
		return nil, err
	}
	return cl, nil
}

func (s *Service) SubmitClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.claimTransition(ctx, id, []string{ClaimDraft}, ClaimSubmitted, "")
}

// QueryClaim records a payer query. Only a submitted claim can be queried.
func (s *Service) QueryClaim(ctx context.Context, id uuid.UUID, note string) (*Claim, error) {
	return s.claimTransition(ctx, id, []string{ClaimSubmitted}, ClaimQueried, note)
}

// ResubmitClaim answers a payer query, looping the claim back to submitted.
func (s *Service) ResubmitClaim(ctx context.Context, id uuid.UUID, note string) (*Claim, error) {
	return s.claimTransition(ctx, id, []string{ClaimQueried}, ClaimSubmitted, note)
}

func (s *Service) ApproveClaim(ctx context.Context, id uuid.UUID, note string) (*Claim, error) {
	return s.claimTransition(ctx, id, []string{ClaimSubmitted, ClaimQueried}, ClaimApproved, note)
}

func (s *Service) DenyClaim(ctx context.Context, id uuid.UUID, note string) (*Claim, error) {
	return s.claimTransition(ctx, id, []string{ClaimSubmitted, ClaimQueried}, ClaimDenied, note)
}

// SettleClaim moves an approved claim to settled and credits each linked
// invoice with the payer share recorded by its split (falling back to the
// invoice's balance due when no split exists). The status change, the
// events, and the credits commit atomically.
func (s *Service) SettleClaim(ctx context.Context, id uuid.UUID, referenceNo string) (*Claim, error) {
	var out *Claim
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		cl, err := s.repo.GetClaimForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cl.Status != ClaimApproved {
			return apperr.InvalidTransition("cannot settle a %s claim", cl.Status)
		}

		splits, err := s.repo.GetSplitsByCase(ctx, cl.CaseID)
		if err != nil {
			return err
		}
		payerShare := make(map[uuid.UUID]float64, len(splits))
		for _, sp := range splits {
			payerShare[sp.InvoiceID] = sp.PayerShare
		}

		ref := referenceNo
		if ref == "" {
			ref = fmt.Sprintf("claim:%s", cl.ID)
		}
		var settled float64
		for _, invID := range cl.InvoiceIDs {
			amount, ok := payerShare[invID]
			if !ok {
				inv, err := s.invoices.GetInvoice(ctx, invID)
				if err != nil {
					return err
				}
				amount = inv.BalanceDue
			}
			if amount <= 0 {
				continue
			}
			if err := s.creditor.AddPayerCredit(ctx, cl.CaseID, invID, amount, ref); err != nil {
				return err
			}
			settled += amount
		}

		cl.Status = ClaimSettled
		if err := s.repo.UpdateClaim(ctx, cl); err != nil {
			return err
		}
		e := &Event{SubjectID: cl.ID, FromStatus: ClaimApproved, ToStatus: ClaimSettled}
		if settled > 0 {
			e.Amount = &settled
		}
		if err := s.repo.AddClaimEvent(ctx, e); err != nil {
			return err
		}
		out = cl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) claimTransition(ctx context.Context, id uuid.UUID, from []string, to, note string) (*Claim, error) {
	var out *Claim
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		cl, err := s.repo.GetClaimForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !contains(from, cl.Status) {
			return apperr.InvalidTransition("cannot move claim from %s to %s", cl.Status, to)
		}
		fromStatus := cl.Status
		cl.Status = to
		if err := s.repo.UpdateClaim(ctx, cl); err != nil {
			return err
		}
		e := &Event{SubjectID: cl.ID, FromStatus: fromStatus, ToStatus: to}
		if note != "" {
			n := note
			e.Note = &n
		}
		if err := s.repo.AddClaimEvent(ctx, e); err != nil {
			return err
		}
		out = cl
		return nil
	})
	return out, err
}

func (s *Service) ListClaims(ctx context.Context, caseID uuid.UUID) ([]*Claim, error) {
	return s.repo.ListClaimsByCase(ctx, caseID)
}

func (s *Service) ClaimHistory(ctx context.Context, id uuid.UUID) ([]*Event, error) {
	return s.repo.GetClaimEvents(ctx, id)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
