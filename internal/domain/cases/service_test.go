package cases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hims/billing/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Case
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Case)}
}

func (m *mockRepo) Create(_ context.Context, cs *Case) error {
	cs.ID = uuid.New()
	cs.CreatedAt = time.Now()
	cs.UpdatedAt = cs.CreatedAt
	m.items[cs.ID] = cs
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Case, error) {
	cs, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("case %s not found", id)
	}
	cp := *cs
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, cs *Case) error {
	if _, ok := m.items[cs.ID]; !ok {
		return apperr.NotFound("case %s not found", cs.ID)
	}
	m.items[cs.ID] = cs
	return nil
}

func (m *mockRepo) List(_ context.Context, uhid string, limit, offset int) ([]*Case, int, error) {
	var out []*Case
	for _, cs := range m.items {
		if uhid == "" || cs.UHID == uhid {
			out = append(out, cs)
		}
	}
	return out, len(out), nil
}

func newTestService() *Service {
	return NewService(newMockRepo())
}

func TestCreateCase(t *testing.T) {
	svc := newTestService()
	cs := &Case{UHID: "UH-1001", PatientName: "Asha Verma"}
	if err := svc.CreateCase(context.Background(), cs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.Status != StatusOpen {
		t.Errorf("expected status open, got %s", cs.Status)
	}
	if cs.BillingContext != "op" {
		t.Errorf("expected default billing_context op, got %s", cs.BillingContext)
	}
}

func TestCreateCase_UHIDRequired(t *testing.T) {
	svc := newTestService()
	err := svc.CreateCase(context.Background(), &Case{PatientName: "Asha Verma"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateCase_PatientNameRequired(t *testing.T) {
	svc := newTestService()
	err := svc.CreateCase(context.Background(), &Case{UHID: "UH-1001"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateCase_InvalidContext(t *testing.T) {
	svc := newTestService()
	err := svc.CreateCase(context.Background(), &Case{UHID: "UH-1001", PatientName: "Asha Verma", BillingContext: "daycare"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCloseCase(t *testing.T) {
	svc := newTestService()
	cs := &Case{UHID: "UH-1001", PatientName: "Asha Verma"}
	svc.CreateCase(context.Background(), cs)

	closed, err := svc.CloseCase(context.Background(), cs.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Errorf("expected status closed, got %s", closed.Status)
	}
}

func TestCloseCase_Twice(t *testing.T) {
	svc := newTestService()
	cs := &Case{UHID: "UH-1001", PatientName: "Asha Verma"}
	svc.CreateCase(context.Background(), cs)
	svc.CloseCase(context.Background(), cs.ID)

	_, err := svc.CloseCase(context.Background(), cs.ID)
	if !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestCloseCase_NotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.CloseCase(context.Background(), uuid.New())
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
