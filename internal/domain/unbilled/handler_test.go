package unbilled

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_ListUnbilled(t *testing.T) {
	ledger := newMockLedger()
	h := NewHandler(newTestService(ledger, stubSource{name: "lab", records: []Record{labRecord("lab:42", 350)}}))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ledger.inv.CaseID.String())

	if err := h.ListUnbilled(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lab:42") {
		t.Errorf("expected lab:42 in payload, got %s", rec.Body.String())
	}
}

func TestHandler_ListUnbilled_EmptyList(t *testing.T) {
	ledger := newMockLedger()
	h := NewHandler(newTestService(ledger))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ledger.inv.CaseID.String())

	if err := h.ListUnbilled(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty list payload, got %s", rec.Body.String())
	}
}

func TestHandler_ImportSelected(t *testing.T) {
	ledger := newMockLedger()
	h := NewHandler(newTestService(ledger, stubSource{name: "lab", records: []Record{labRecord("lab:42", 350)}}))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"uids":["lab:42"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ledger.inv.ID.String())

	if err := h.ImportSelected(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// A partial failure renders 207 with both the result and the error block.
func TestHandler_ImportSelected_PartialFailure(t *testing.T) {
	ledger := newMockLedger()
	ledger.failUIDs["lab:2"] = true
	h := NewHandler(newTestService(ledger, stubSource{name: "lab", records: []Record{
		labRecord("lab:1", 100),
		labRecord("lab:2", 200),
	}}))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ledger.inv.ID.String())

	if err := h.ImportSelected(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusMultiStatus {
		t.Errorf("expected 207, got %d", rec.Code)
	}

	var body struct {
		Status bool          `json:"status"`
		Msg    string        `json:"msg"`
		Data   *ImportResult `json:"data"`
		Error  struct {
			Details []struct {
				Msg string `json:"msg"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Status {
		t.Error("expected status false")
	}
	if body.Msg != "imported 1 of 2 records" {
		t.Errorf("unexpected msg %q", body.Msg)
	}
	if body.Data == nil || len(body.Data.Imported) != 1 {
		t.Errorf("expected the committed successes in data, got %+v", body.Data)
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0].Msg != "lab:2" {
		t.Errorf("expected failed uid in error details, got %+v", body.Error.Details)
	}
}
