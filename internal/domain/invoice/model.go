package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses.
const (
	StatusDraft    = "draft"
	StatusApproved = "approved"
	StatusPosted   = "posted"
	StatusVoided   = "voided"
)

// Line entry types. Discounts are structurally tagged entries rather than
// negative charges distinguished only by description text, so reporting can
// classify adjustments without parsing labels.
const (
	EntryCharge   = "charge"
	EntryDiscount = "discount"
)

// Service types describe which module a line item originated from.
const (
	ServiceManual    = "manual"
	ServiceLab       = "lab"
	ServiceRadiology = "radiology"
	ServicePharmacy  = "pharmacy"
	ServiceOPD       = "opd"
	ServiceIPD       = "ipd"
)

var validBillingTypes = map[string]bool{
	"op": true, "ip": true, "pharmacy": true, "lab": true, "radiology": true, "general": true,
}

var validServiceTypes = map[string]bool{
	ServiceManual: true, ServiceLab: true, ServiceRadiology: true,
	ServicePharmacy: true, ServiceOPD: true, ServiceIPD: true,
}

// Invoice maps to the invoice table. Totals are denormalized and recomputed
// inside the same transaction as every mutation; they are never derived
// lazily at read time.
type Invoice struct {
	ID             uuid.UUID `db:"id" json:"id"`
	CaseID         uuid.UUID `db:"case_id" json:"case_id"`
	BillingType    string    `db:"billing_type" json:"billing_type"`
	Status         string    `db:"status" json:"status"`
	GrossTotal     float64   `db:"gross_total" json:"gross_total"`
	TaxTotal       float64   `db:"tax_total" json:"tax_total"`
	NetTotal       float64   `db:"net_total" json:"net_total"`
	AmountPaid     float64   `db:"amount_paid" json:"amount_paid"`
	AdvanceApplied float64   `db:"advance_applied" json:"advance_applied"`
	BalanceDue     float64   `db:"balance_due" json:"balance_due"`
	VoidReason     *string   `db:"void_reason" json:"void_reason,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// LineItem maps to the invoice_line_item table. Voided items stay in the
// sequence for audit and are excluded from aggregates.
type LineItem struct {
	ID           uuid.UUID `db:"id" json:"id"`
	InvoiceID    uuid.UUID `db:"invoice_id" json:"invoice_id"`
	EntryType    string    `db:"entry_type" json:"entry_type"`
	Description  string    `db:"description" json:"description"`
	Quantity     float64   `db:"quantity" json:"quantity"`
	UnitPrice    float64   `db:"unit_price" json:"unit_price"`
	TaxRate      float64   `db:"tax_rate" json:"tax_rate"`
	TaxAmount    float64   `db:"tax_amount" json:"tax_amount"`
	LineTotal    float64   `db:"line_total" json:"line_total"`
	ServiceType  string    `db:"service_type" json:"service_type"`
	ServiceUID   *string   `db:"service_uid" json:"service_uid,omitempty"`
	ServiceRefID *string   `db:"service_ref_id" json:"service_ref_id,omitempty"`
	AuthorizedBy *string   `db:"authorized_by" json:"authorized_by,omitempty"`
	IsVoided     bool      `db:"is_voided" json:"is_voided"`
	VoidReason   *string   `db:"void_reason" json:"void_reason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ServiceItemInput describes an imported service to be billed as a charge
// line. The UID is the cross-module dedup key; RefID points back at the
// source record without owning it.
type ServiceItemInput struct {
	ServiceType string  `json:"service_type"`
	UID         string  `json:"uid"`
	RefID       string  `json:"ref_id"`
	Label       string  `json:"label"`
	Amount      float64 `json:"amount"`
	TaxRate     float64 `json:"tax_rate"`
}
