package cases

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

var validContexts = map[string]bool{"op": true, "ip": true}

// Case is the billing root aggregate: one per hospital encounter. It owns
// the encounter's invoices, payments, advances, and insurance case.
type Case struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UHID           string    `db:"uhid" json:"uhid"`
	PatientName    string    `db:"patient_name" json:"patient_name"`
	BillingContext string    `db:"billing_context" json:"billing_context"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
