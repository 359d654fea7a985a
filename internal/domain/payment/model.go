package payment

import (
	"time"

	"github.com/google/uuid"
)

// Payment modes. "credit" is reserved for payer settlements recorded by the
// claim workflow.
const (
	ModeCash   = "cash"
	ModeCard   = "card"
	ModeUPI    = "upi"
	ModeCredit = "credit"
)

var validModes = map[string]bool{
	ModeCash: true, ModeCard: true, ModeUPI: true, ModeCredit: true,
}

// Payment is a receipt against an invoice. Immutable once created; the only
// correction path is an explicit delete (reversal), which recomputes the
// invoice's balance.
type Payment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	CaseID      uuid.UUID `db:"case_id" json:"case_id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Amount      float64   `db:"amount" json:"amount"`
	Mode        string    `db:"mode" json:"mode"`
	ReferenceNo *string   `db:"reference_no" json:"reference_no,omitempty"`
	ReceivedAt  time.Time `db:"received_at" json:"received_at"`
}

// Advance is a pre-paid balance held against a case. BalanceRemaining only
// ever decreases, through ApplyAdvance.
type Advance struct {
	ID               uuid.UUID `db:"id" json:"id"`
	CaseID           uuid.UUID `db:"case_id" json:"case_id"`
	Amount           float64   `db:"amount" json:"amount"`
	BalanceRemaining float64   `db:"balance_remaining" json:"balance_remaining"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
