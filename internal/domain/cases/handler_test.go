package cases

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestHandler_CreateCase(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()

	body := `{"uhid":"UH-1001","patient_name":"Asha Verma","billing_context":"ip"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateCase(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var envelope struct {
		Status bool `json:"status"`
		Data   Case `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !envelope.Status {
		t.Error("expected status true")
	}
	if envelope.Data.Status != StatusOpen || envelope.Data.BillingContext != "ip" {
		t.Errorf("unexpected case %+v", envelope.Data)
	}
}

func TestHandler_CreateCase_MissingUHID(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patient_name":"Asha Verma"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateCase(c); err == nil {
		t.Error("expected error for missing uhid")
	}
}

func TestHandler_GetCase_NotFound(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetCase(c); err == nil {
		t.Error("expected not found error")
	}
}

func TestHandler_CloseCase(t *testing.T) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	cs := &Case{UHID: "UH-1001", PatientName: "Asha Verma"}
	if err := svc.CreateCase(context.Background(), cs); err != nil {
		t.Fatalf("seeding case: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cs.ID.String())

	if err := h.CloseCase(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var envelope struct {
		Data Case `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &envelope)
	if envelope.Data.Status != StatusClosed {
		t.Errorf("expected closed, got %s", envelope.Data.Status)
	}
}
