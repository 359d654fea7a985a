package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindZeroAmount, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindNotConfigured, http.StatusNotFound},
		{KindAlreadyVoided, http.StatusConflict},
		{KindInvalidTransition, http.StatusConflict},
		{KindInvalidState, http.StatusConflict},
		{KindInsufficientAdvance, http.StatusConflict},
		{KindPartialImport, http.StatusMultiStatus},
		{KindCanceled, 499},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.kind.HTTPStatus(); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestErrorsIsMatchesOnKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("invoice %s not found", "abc"))
	if !errors.Is(err, NotFound("")) {
		t.Error("expected errors.Is to match on kind")
	}
	if errors.Is(err, Validation("")) {
		t.Error("expected mismatch across kinds")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(InsufficientAdvance("short")) != KindInsufficientAdvance {
		t.Error("expected insufficient advance kind")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("expected plain errors to default to internal")
	}
	if KindOf(context.Canceled) != KindCanceled {
		t.Error("expected context cancellation to map to canceled")
	}
}

func TestInternalWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause, "listing unbilled services from %s", "lab")
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to survive errors.Is")
	}
	if KindOf(err) != KindInternal {
		t.Error("expected internal kind")
	}
}

func TestPartialImportDetails(t *testing.T) {
	err := PartialImport("imported 2 of 3 records", []string{"lab:9"})
	if len(err.Details) != 1 || err.Details[0] != "lab:9" {
		t.Errorf("expected failed uid in details, got %v", err.Details)
	}
}

func TestFromContextErr(t *testing.T) {
	if FromContextErr(nil) != nil {
		t.Error("expected nil passthrough")
	}
	if KindOf(FromContextErr(context.DeadlineExceeded)) != KindCanceled {
		t.Error("expected deadline to map to canceled")
	}
	plain := errors.New("boom")
	if FromContextErr(plain) != plain {
		t.Error("expected non-context errors unchanged")
	}
}
