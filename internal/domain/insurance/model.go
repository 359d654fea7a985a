package insurance

import (
	"time"

	"github.com/google/uuid"
)

// Preauth statuses. approved, partially_approved, and rejected are terminal.
const (
	PreauthDraft             = "draft"
	PreauthSubmitted         = "submitted"
	PreauthApproved          = "approved"
	PreauthPartiallyApproved = "partially_approved"
	PreauthRejected          = "rejected"
)

// Claim statuses. settled and denied are terminal; queried loops back to
// submitted via resubmission.
const (
	ClaimDraft     = "draft"
	ClaimSubmitted = "submitted"
	ClaimQueried   = "queried"
	ClaimApproved  = "approved"
	ClaimSettled   = "settled"
	ClaimDenied    = "denied"
)

// InsuranceCase is the 1:1 insurance configuration for a billing case.
type InsuranceCase struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CaseID    uuid.UUID `db:"case_id" json:"case_id"`
	PayerID   string    `db:"payer_id" json:"payer_id"`
	PayerName string    `db:"payer_name" json:"payer_name"`
	TPAID     *string   `db:"tpa_id" json:"tpa_id,omitempty"`
	PolicyNo  *string   `db:"policy_no" json:"policy_no,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CoverageLine declares what percentage of a charge category the payer
// covers. Category "all" acts as the fallback for unmatched billing types.
type CoverageLine struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InsuranceID uuid.UUID `db:"insurance_id" json:"insurance_id"`
	Category    string    `db:"category" json:"category"`
	CoveragePct float64   `db:"coverage_pct" json:"coverage_pct"`
}

// LinePatch is one element of the bare-list PATCH body for coverage lines.
type LinePatch struct {
	Category    string  `json:"category"`
	CoveragePct float64 `json:"coverage_pct"`
}

// InvoiceSplit is the persisted partition of one invoice's balance between
// the payer-covered and patient-payable portions.
type InvoiceSplit struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CaseID       uuid.UUID `db:"case_id" json:"case_id"`
	InvoiceID    uuid.UUID `db:"invoice_id" json:"invoice_id"`
	CoveragePct  float64   `db:"coverage_pct" json:"coverage_pct"`
	PayerShare   float64   `db:"payer_share" json:"payer_share"`
	PatientShare float64   `db:"patient_share" json:"patient_share"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Preauth is a pre-authorization request to the payer, bounding the amount
// they will cover before treatment.
type Preauth struct {
	ID              uuid.UUID `db:"id" json:"id"`
	CaseID          uuid.UUID `db:"case_id" json:"case_id"`
	Status          string    `db:"status" json:"status"`
	RequestedAmount float64   `db:"requested_amount" json:"requested_amount"`
	ApprovedAmount  *float64  `db:"approved_amount" json:"approved_amount,omitempty"`
	Remarks         *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Claim is a post-treatment reimbursement submission linked to one or more
// invoices through the split operation.
type Claim struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	CaseID     uuid.UUID   `db:"case_id" json:"case_id"`
	Status     string      `db:"status" json:"status"`
	InvoiceIDs []uuid.UUID `db:"invoice_ids" json:"invoice_ids"`
	Remarks    *string     `db:"remarks" json:"remarks,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// Event is one entry in a workflow's append-only history. Every transition
// is recorded, never overwritten, so the full negotiation history with a
// payer stays reconstructible.
type Event struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SubjectID  uuid.UUID `db:"subject_id" json:"subject_id"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	Note       *string   `db:"note" json:"note,omitempty"`
	Amount     *float64  `db:"amount" json:"amount,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
