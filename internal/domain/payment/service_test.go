package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/db"
)

// -- Mock Repository --

type mockRepo struct {
	payments map[uuid.UUID]*Payment
	advances map[uuid.UUID]*Advance
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		payments: make(map[uuid.UUID]*Payment),
		advances: make(map[uuid.UUID]*Advance),
	}
}

func (m *mockRepo) CreatePayment(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	p.ReceivedAt = time.Now()
	m.payments[p.ID] = p
	return nil
}

func (m *mockRepo) GetPayment(_ context.Context, id uuid.UUID) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, apperr.NotFound("payment %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) DeletePayment(_ context.Context, id uuid.UUID) error {
	if _, ok := m.payments[id]; !ok {
		return apperr.NotFound("payment %s not found", id)
	}
	delete(m.payments, id)
	return nil
}

func (m *mockRepo) ListPaymentsByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	var out []*Payment
	for _, p := range m.payments {
		if p.CaseID == caseID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) CreateAdvance(_ context.Context, a *Advance) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.advances[a.ID] = a
	return nil
}

func (m *mockRepo) GetAdvanceForUpdate(_ context.Context, id uuid.UUID) (*Advance, error) {
	a, ok := m.advances[id]
	if !ok {
		return nil, apperr.NotFound("advance %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) UpdateAdvanceBalance(_ context.Context, a *Advance) error {
	stored, ok := m.advances[a.ID]
	if !ok {
		return apperr.NotFound("advance %s not found", a.ID)
	}
	stored.BalanceRemaining = a.BalanceRemaining
	return nil
}

func (m *mockRepo) ListAdvancesByCase(_ context.Context, caseID uuid.UUID) ([]*Advance, error) {
	var out []*Advance
	for _, a := range m.advances {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	return out, nil
}

// mockLedger records the deltas the payment service pushes at the invoice
// aggregates.
type mockLedger struct {
	paid    map[uuid.UUID]float64
	advance map[uuid.UUID]float64
}

func newMockLedger() *mockLedger {
	return &mockLedger{paid: make(map[uuid.UUID]float64), advance: make(map[uuid.UUID]float64)}
}

func (m *mockLedger) ApplyPaymentDelta(_ context.Context, invoiceID uuid.UUID, delta float64) error {
	m.paid[invoiceID] += delta
	return nil
}

func (m *mockLedger) ApplyAdvanceDelta(_ context.Context, invoiceID uuid.UUID, delta float64) error {
	m.advance[invoiceID] += delta
	return nil
}

func newTestService() (*Service, *mockRepo, *mockLedger) {
	repo := newMockRepo()
	ledger := newMockLedger()
	return NewService(repo, ledger, db.PassthroughRunner{}), repo, ledger
}

// -- Payment Tests --

func TestAddPayment(t *testing.T) {
	svc, _, ledger := newTestService()
	invoiceID := uuid.New()

	p, err := svc.AddPayment(context.Background(), uuid.New(), invoiceID, 500, ModeCard, "TXN-1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Mode != ModeCard {
		t.Errorf("expected mode card, got %s", p.Mode)
	}
	if ledger.paid[invoiceID] != 500 {
		t.Errorf("expected payment delta 500, got %g", ledger.paid[invoiceID])
	}
}

func TestAddPayment_DefaultsToCash(t *testing.T) {
	svc, _, _ := newTestService()
	p, err := svc.AddPayment(context.Background(), uuid.New(), uuid.New(), 100, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Mode != ModeCash {
		t.Errorf("expected default mode cash, got %s", p.Mode)
	}
}

func TestAddPayment_AmountValidation(t *testing.T) {
	svc, _, _ := newTestService()
	for _, amount := range []float64{0, -100} {
		_, err := svc.AddPayment(context.Background(), uuid.New(), uuid.New(), amount, ModeCash, "")
		if !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("amount %g: expected validation error, got %v", amount, err)
		}
	}
}

func TestAddPayment_InvalidMode(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.AddPayment(context.Background(), uuid.New(), uuid.New(), 100, "cheque", "")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAddPayment_InvoiceIDRequired(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.AddPayment(context.Background(), uuid.New(), uuid.Nil, 100, ModeCash, "")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAddPayerCredit(t *testing.T) {
	svc, _, ledger := newTestService()
	invoiceID := uuid.New()
	p, err := svc.AddPayerCredit(context.Background(), uuid.New(), invoiceID, 700, "claim:abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Mode != ModeCredit {
		t.Errorf("expected mode credit, got %s", p.Mode)
	}
	if ledger.paid[invoiceID] != 700 {
		t.Errorf("expected payment delta 700, got %g", ledger.paid[invoiceID])
	}
}

func TestDeletePayment_ReversesDelta(t *testing.T) {
	svc, _, ledger := newTestService()
	invoiceID := uuid.New()
	p, _ := svc.AddPayment(context.Background(), uuid.New(), invoiceID, 300, ModeCash, "")

	if err := svc.DeletePayment(context.Background(), p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.paid[invoiceID] != 0 {
		t.Errorf("expected net delta 0 after reversal, got %g", ledger.paid[invoiceID])
	}
}

func TestDeletePayment_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.DeletePayment(context.Background(), uuid.New())
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

// -- Advance Tests --

func TestCreateAdvance(t *testing.T) {
	svc, _, _ := newTestService()
	a, err := svc.CreateAdvance(context.Background(), uuid.New(), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.BalanceRemaining != 500 {
		t.Errorf("expected balance_remaining 500, got %g", a.BalanceRemaining)
	}
}

func TestCreateAdvance_AmountValidation(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateAdvance(context.Background(), uuid.New(), 0)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestApplyAdvance(t *testing.T) {
	svc, _, ledger := newTestService()
	invoiceID := uuid.New()
	a, _ := svc.CreateAdvance(context.Background(), uuid.New(), 500)

	got, err := svc.ApplyAdvance(context.Background(), a.ID, invoiceID, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BalanceRemaining != 200 {
		t.Errorf("expected balance_remaining 200, got %g", got.BalanceRemaining)
	}
	if ledger.advance[invoiceID] != 300 {
		t.Errorf("expected advance delta 300, got %g", ledger.advance[invoiceID])
	}
}

func TestApplyAdvance_InsufficientBalance(t *testing.T) {
	svc, repo, ledger := newTestService()
	invoiceID := uuid.New()
	a, _ := svc.CreateAdvance(context.Background(), uuid.New(), 500)
	svc.ApplyAdvance(context.Background(), a.ID, invoiceID, 300)

	// 200 remains; 250 must be refused and nothing applied.
	_, err := svc.ApplyAdvance(context.Background(), a.ID, invoiceID, 250)
	if !apperr.IsKind(err, apperr.KindInsufficientAdvance) {
		t.Errorf("expected insufficient advance, got %v", err)
	}
	stored, _ := repo.GetAdvanceForUpdate(context.Background(), a.ID)
	if stored.BalanceRemaining != 200 {
		t.Errorf("expected balance_remaining unchanged at 200, got %g", stored.BalanceRemaining)
	}
	if ledger.advance[invoiceID] != 300 {
		t.Errorf("expected advance delta unchanged at 300, got %g", ledger.advance[invoiceID])
	}
}

func TestApplyAdvance_ExactBalance(t *testing.T) {
	svc, _, _ := newTestService()
	a, _ := svc.CreateAdvance(context.Background(), uuid.New(), 500)
	got, err := svc.ApplyAdvance(context.Background(), a.ID, uuid.New(), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BalanceRemaining != 0 {
		t.Errorf("expected balance_remaining 0, got %g", got.BalanceRemaining)
	}
}

func TestApplyAdvance_AmountValidation(t *testing.T) {
	svc, _, _ := newTestService()
	a, _ := svc.CreateAdvance(context.Background(), uuid.New(), 500)
	_, err := svc.ApplyAdvance(context.Background(), a.ID, uuid.New(), -10)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
