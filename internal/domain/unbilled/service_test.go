package unbilled

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hims/billing/internal/domain/invoice"
	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/db"
)

// -- Mocks --

// mockLedger mimics the invoice ledger: it tracks which uids have been
// billed and fails AddServiceItem for uids listed in failUIDs. Uids in
// lateBilled become visible from the second BilledServiceUIDs call on,
// standing in for a concurrent import committing mid-request.
type mockLedger struct {
	inv         *invoice.Invoice
	billed      map[string]bool
	lateBilled  map[string]bool
	failUIDs    map[string]bool
	added       []string
	billedCalls int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		inv:        &invoice.Invoice{ID: uuid.New(), CaseID: uuid.New(), Status: invoice.StatusDraft},
		billed:     make(map[string]bool),
		lateBilled: make(map[string]bool),
		failUIDs:   make(map[string]bool),
	}
}

func (m *mockLedger) GetInvoice(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	if id != m.inv.ID {
		return nil, apperr.NotFound("invoice %s not found", id)
	}
	return m.inv, nil
}

func (m *mockLedger) BilledServiceUIDs(_ context.Context, caseID uuid.UUID) (map[string]bool, error) {
	m.billedCalls++
	out := make(map[string]bool, len(m.billed))
	for uid := range m.billed {
		out[uid] = true
	}
	if m.billedCalls > 1 {
		for uid := range m.lateBilled {
			out[uid] = true
		}
	}
	return out, nil
}

func (m *mockLedger) AddServiceItem(_ context.Context, invoiceID uuid.UUID, in invoice.ServiceItemInput) (*invoice.LineItem, error) {
	if m.failUIDs[in.UID] {
		return nil, apperr.Validation("amount must be a finite non-negative number")
	}
	m.billed[in.UID] = true
	m.added = append(m.added, in.UID)
	uid := in.UID
	return &invoice.LineItem{ID: uuid.New(), InvoiceID: invoiceID, ServiceUID: &uid}, nil
}

type stubSource struct {
	name    string
	records []Record
	err     error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Pending(_ context.Context, _ uuid.UUID) ([]Record, error) {
	return s.records, s.err
}

func labRecord(uid string, amount float64) Record {
	return Record{UID: uid, SourceType: invoice.ServiceLab, SourceID: "1", Label: "CBC", Amount: amount}
}

func newTestService(ledger *mockLedger, sources ...Source) *Service {
	return NewService(ledger, db.PassthroughRunner{}, zerolog.Nop(), sources...)
}

// -- Listing Tests --

func TestListUnbilled_FiltersBilled(t *testing.T) {
	ledger := newMockLedger()
	ledger.billed["lab:1"] = true
	svc := newTestService(ledger, stubSource{name: "lab", records: []Record{
		labRecord("lab:1", 100),
		labRecord("lab:2", 200),
	}})

	records, err := svc.ListUnbilled(context.Background(), ledger.inv.CaseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].UID != "lab:2" {
		t.Errorf("expected only lab:2, got %v", records)
	}
}

func TestListUnbilled_DeduplicatesAcrossSources(t *testing.T) {
	ledger := newMockLedger()
	svc := newTestService(ledger,
		stubSource{name: "lab", records: []Record{labRecord("lab:42", 350)}},
		stubSource{name: "lab-mirror", records: []Record{labRecord("lab:42", 350)}},
	)

	records, err := svc.ListUnbilled(context.Background(), ledger.inv.CaseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected one record, got %d", len(records))
	}
}

func TestListUnbilled_SourceFailureFailsListing(t *testing.T) {
	ledger := newMockLedger()
	svc := newTestService(ledger,
		stubSource{name: "lab", records: []Record{labRecord("lab:1", 100)}},
		stubSource{name: "pharmacy", err: context.DeadlineExceeded},
	)

	_, err := svc.ListUnbilled(context.Background(), ledger.inv.CaseID)
	if !apperr.IsKind(err, apperr.KindInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}

// -- Import Tests --

func TestImportSelected(t *testing.T) {
	ledger := newMockLedger()
	svc := newTestService(ledger, stubSource{name: "lab", records: []Record{
		labRecord("lab:42", 350),
		labRecord("lab:43", 120),
	}})

	result, err := svc.ImportSelected(context.Background(), ledger.inv.ID, []string{"lab:42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Imported) != 1 || result.Imported[0] != "lab:42" {
		t.Errorf("expected imported [lab:42], got %v", result.Imported)
	}
	if !ledger.billed["lab:42"] {
		t.Error("expected lab:42 billed on the ledger")
	}
}

func TestImportSelected_SecondImportSkips(t *testing.T) {
	ledger := newMockLedger()
	svc := newTestService(ledger, stubSource{name: "lab", records: []Record{labRecord("lab:42", 350)}})

	if _, err := svc.ImportSelected(context.Background(), ledger.inv.ID, []string{"lab:42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.ImportSelected(context.Background(), ledger.inv.ID, []string{"lab:42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Imported) != 0 {
		t.Errorf("expected nothing imported, got %v", result.Imported)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "lab:42" {
		t.Errorf("expected skipped [lab:42], got %v", result.Skipped)
	}
	if len(ledger.added) != 1 {
		t.Errorf("expected a single line on the invoice, got %d", len(ledger.added))
	}
}

func TestImportSelected_DuplicateUIDInBatch(t *testing.T) {
	ledger := newMockLedger()
	svc := newTestService(ledger, stubSource{name: "lab", records: []Record{labRecord("lab:42", 350)}})

	result, err := svc.ImportSelected(context.Background(), ledger.inv.ID, []string{"lab:42", "lab:42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Imported) != 1 || result.Imported[0] != "lab:42" {
		t.Errorf("expected imported [lab:42], got %v", result.Imported)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "lab:42" {
		t.Errorf("expected the repeat skipped, got %v", result.Skipped)
	}
	if len(ledger.added) != 1 {
		t.Errorf("expected exactly one line item for lab:42, got %d", len(ledger.added))
	}
}

func TestImportSelected_SkipsUIDBilledMidRequest(t *testing.T) {
	ledger := newMockLedger()
	ledger.lateBilled["lab:42"] = true
	svc := newTestService(ledger, stubSource{name: "lab", records: []Record{
		labRecord("lab:42", 350),
		labRecord("lab:43", 120),
	}})

	result, err := svc.ImportSelected(context.Background(), ledger.inv.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "lab:42" {
		t.Errorf("expected the concurrently billed uid skipped, got %v", result.Skipped)
	}
	if len(result.Imported) != 1 || result.Imported[0] != "lab:43" {
		t.Errorf("expected imported [lab:43], got %v", result.Imported)
	}
	if len(ledger.added) != 1 {
		t.Errorf("expected a single line added, got %d", len(ledger.added))
	}
}

func TestImportSelected_EmptyUIDsImportsAll(t *testing.T) {
	ledger := newMockLedger()
	svc := newTestService(ledger, stubSource{name: "lab", records: []Record{
		labRecord("lab:1", 100),
		labRecord("lab:2", 200),
	}})

	result, err := svc.ImportSelected(context.Background(), ledger.inv.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Imported) != 2 {
		t.Errorf("expected 2 imported, got %v", result.Imported)
	}
}

func TestImportSelected_UnknownUIDSkipped(t *testing.T) {
	ledger := newMockLedger()
	svc := newTestService(ledger, stubSource{name: "lab", records: []Record{labRecord("lab:1", 100)}})

	result, err := svc.ImportSelected(context.Background(), ledger.inv.ID, []string{"lab:999"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "lab:999" {
		t.Errorf("expected skipped [lab:999], got %v", result.Skipped)
	}
}

func TestImportSelected_PartialFailure(t *testing.T) {
	ledger := newMockLedger()
	ledger.failUIDs["lab:2"] = true
	svc := newTestService(ledger, stubSource{name: "lab", records: []Record{
		labRecord("lab:1", 100),
		labRecord("lab:2", 200),
		labRecord("lab:3", 300),
	}})

	result, err := svc.ImportSelected(context.Background(), ledger.inv.ID, nil)
	if !apperr.IsKind(err, apperr.KindPartialImport) {
		t.Fatalf("expected partial import error, got %v", err)
	}
	if len(result.Imported) != 2 {
		t.Errorf("expected 2 imported, got %v", result.Imported)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "lab:2" {
		t.Errorf("expected failed [lab:2], got %v", result.Failed)
	}
	// The good records around the failure must have committed.
	if !ledger.billed["lab:1"] || !ledger.billed["lab:3"] {
		t.Error("expected lab:1 and lab:3 billed despite the lab:2 failure")
	}
}

func TestImportSelected_InvoiceNotFound(t *testing.T) {
	ledger := newMockLedger()
	svc := newTestService(ledger)
	_, err := svc.ImportSelected(context.Background(), uuid.New(), nil)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
