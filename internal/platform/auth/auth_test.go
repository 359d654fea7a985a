package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub string, roles []string, exp time.Time) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func newAuthEcho(devMode bool) *echo.Echo {
	e := echo.New()
	e.Use(Middleware(testSecret, devMode))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c))
	}, RequireRole("billing"))
	return e
}

func TestMiddleware_DevMode(t *testing.T) {
	e := newAuthEcho(true)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 in dev mode, got %d", rec.Code)
	}
	if rec.Body.String() != "dev-user" {
		t.Errorf("expected dev-user subject, got %q", rec.Body.String())
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	e := newAuthEcho(false)
	token := signToken(t, "user-7", []string{"billing"}, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "user-7" {
		t.Errorf("expected user-7 subject, got %q", rec.Body.String())
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	e := newAuthEcho(false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	e := newAuthEcho(false)
	token := signToken(t, "user-7", []string{"billing"}, time.Now().Add(-time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	e := newAuthEcho(false)
	token := signToken(t, "user-7", []string{"frontdesk"}, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
