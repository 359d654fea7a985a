package unbilled

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hims/billing/internal/domain/invoice"
	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/db"
)

// Ledger is the slice of the invoice service the importer needs.
type Ledger interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	BilledServiceUIDs(ctx context.Context, caseID uuid.UUID) (map[string]bool, error)
	AddServiceItem(ctx context.Context, invoiceID uuid.UUID, in invoice.ServiceItemInput) (*invoice.LineItem, error)
}

// Service aggregates unbilled service records from the registered sources
// and imports selected ones into an invoice as charge lines, deduplicated
// by UID across the whole case.
type Service struct {
	sources []Source
	ledger  Ledger
	runner  db.Runner
	logger  zerolog.Logger
}

func NewService(ledger Ledger, runner db.Runner, logger zerolog.Logger, sources ...Source) *Service {
	return &Service{sources: sources, ledger: ledger, runner: runner, logger: logger}
}

// ListUnbilled returns the candidate records for the case that are not yet
// present as a non-voided line item on any non-voided invoice. A failing
// source fails the listing: callers need the full candidate set to make an
// import decision.
func (s *Service) ListUnbilled(ctx context.Context, caseID uuid.UUID) ([]Record, error) {
	billed, err := s.ledger.BilledServiceUIDs(ctx, caseID)
	if err != nil {
		return nil, err
	}

	var out []Record
	seen := make(map[string]bool)
	for _, src := range s.sources {
		records, err := src.Pending(ctx, caseID)
		if err != nil {
			return nil, apperr.Internal(err, "listing unbilled services from %s", src.Name())
		}
		for _, rec := range records {
			if rec.UID == "" || billed[rec.UID] || seen[rec.UID] {
				continue
			}
			seen[rec.UID] = true
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

// ImportResult reports the outcome of an ImportSelected call.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
	Failed   []string `json:"failed"`
}

// ImportSelected imports the records with the given UIDs into the invoice.
// An empty uid list means "all". UIDs already billed anywhere on the case
// are skipped, not errored, so the operation is idempotent per uid. One bad
// record never blocks the batch: failures are collected and reported as a
// PartialImportError alongside the successfully imported uids.
func (s *Service) ImportSelected(ctx context.Context, invoiceID uuid.UUID, uids []string) (*ImportResult, error) {
	inv, err := s.ledger.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.ListUnbilled(ctx, inv.CaseID)
	if err != nil {
		return nil, err
	}
	byUID := make(map[string]Record, len(candidates))
	for _, rec := range candidates {
		byUID[rec.UID] = rec
	}

	if len(uids) == 0 {
		uids = make([]string, 0, len(candidates))
		for _, rec := range candidates {
			uids = append(uids, rec.UID)
		}
	}

	result := &ImportResult{Imported: []string{}, Skipped: []string{}, Failed: []string{}}
	for _, uid := range uids {
		rec, ok := byUID[uid]
		if !ok {
			// Already billed on the case, repeated in this batch, or
			// never offered by a source.
			result.Skipped = append(result.Skipped, uid)
			continue
		}

		// Each record imports in its own transaction so one failure
		// cannot roll back the rest of the batch. The billed set is
		// re-read with the transaction open: the candidate snapshot
		// above is stale the moment another terminal imports.
		var raced bool
		err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
			billed, err := s.ledger.BilledServiceUIDs(ctx, inv.CaseID)
			if err != nil {
				return err
			}
			if billed[uid] {
				raced = true
				return nil
			}
			_, err = s.ledger.AddServiceItem(ctx, invoiceID, invoice.ServiceItemInput{
				ServiceType: rec.SourceType,
				UID:         rec.UID,
				RefID:       rec.SourceID,
				Label:       rec.Label,
				Amount:      rec.Amount,
				TaxRate:     rec.TaxRate,
			})
			return err
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("uid", uid).Msg("unbilled import failed for record")
			result.Failed = append(result.Failed, uid)
			continue
		}
		if raced {
			result.Skipped = append(result.Skipped, uid)
			continue
		}
		// Drop the uid from the candidates so a repeat later in the
		// same batch skips instead of billing twice.
		delete(byUID, uid)
		result.Imported = append(result.Imported, uid)
	}

	if len(result.Failed) > 0 {
		return result, apperr.PartialImport(
			fmt.Sprintf("imported %d of %d records", len(result.Imported), len(result.Imported)+len(result.Failed)),
			result.Failed)
	}
	return result, nil
}
