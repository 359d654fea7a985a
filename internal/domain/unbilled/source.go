package unbilled

import (
	"context"

	"github.com/google/uuid"
)

// Record is a read-only projection of a service rendered by another module
// (lab order, drug dispense, procedure) that has not yet been billed. The
// UID is globally unique per (source_type, source_id) and is the dedup key
// preventing the same clinical service from being billed twice.
type Record struct {
	UID        string  `json:"uid"`
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	Label      string  `json:"label"`
	Amount     float64 `json:"amount"`
	TaxRate    float64 `json:"tax_rate"`
}

// Source supplies unbilled service records for a case. Lab, radiology,
// pharmacy, and OPD modules each register one.
type Source interface {
	// Name returns the service type this source contributes ("lab",
	// "radiology", "pharmacy", "opd").
	Name() string
	// Pending returns the services rendered for the case that the source
	// considers billable.
	Pending(ctx context.Context, caseID uuid.UUID) ([]Record, error)
}
