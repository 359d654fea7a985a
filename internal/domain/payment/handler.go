package payment

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/auth"
	"github.com/hims/billing/internal/platform/middleware"
	"github.com/hims/billing/internal/platform/respond"
	"github.com/hims/billing/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the payment routes. Payment capture honors
// Idempotency-Key so a retried request cannot double-charge.
func (h *Handler) RegisterRoutes(billing *echo.Group, idem middleware.IdempotencyStore) {
	g := billing.Group("", auth.RequireRole("admin", "billing"))

	g.POST("/cases/:id/payments", h.AddPayment, middleware.Idempotency(idem))
	g.GET("/cases/:id/payments", h.ListPayments)
	g.DELETE("/payments/:id", h.DeletePayment)
	g.POST("/cases/:id/advances", h.CreateAdvance)
	g.GET("/cases/:id/advances", h.ListAdvances)
	g.POST("/cases/:id/advances/:advanceID/apply", h.ApplyAdvance)
}

// AddPayment binds its payload from query parameters (invoice_id, amount,
// mode, reference_no). Must be POST despite the fetch-like shape: it
// mutates the ledger.
func (h *Handler) AddPayment(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	invoiceID, err := uuid.Parse(c.QueryParam("invoice_id"))
	if err != nil {
		return apperr.Validation("invalid invoice_id")
	}
	amount, err := parseFloatParam(c, "amount")
	if err != nil {
		return err
	}
	p, err := h.svc.AddPayment(c.Request().Context(), caseID, invoiceID, amount,
		c.QueryParam("mode"), c.QueryParam("reference_no"))
	if err != nil {
		return err
	}
	return respond.Created(c, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeletePayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	if err := h.svc.DeletePayment(c.Request().Context(), id); err != nil {
		return err
	}
	return respond.OK(c, map[string]interface{}{"deleted": true})
}

func (h *Handler) CreateAdvance(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	amount, err := parseFloatParam(c, "amount")
	if err != nil {
		return err
	}
	a, err := h.svc.CreateAdvance(c.Request().Context(), caseID, amount)
	if err != nil {
		return err
	}
	return respond.Created(c, a)
}

func (h *Handler) ListAdvances(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	items, err := h.svc.ListAdvances(c.Request().Context(), caseID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Advance{}
	}
	return respond.OK(c, items)
}

func (h *Handler) ApplyAdvance(c echo.Context) error {
	advanceID, err := uuid.Parse(c.Param("advanceID"))
	if err != nil {
		return apperr.Validation("invalid advanceID")
	}
	invoiceID, err := uuid.Parse(c.QueryParam("invoice_id"))
	if err != nil {
		return apperr.Validation("invalid invoice_id")
	}
	amount, err := parseFloatParam(c, "amount")
	if err != nil {
		return err
	}
	a, err := h.svc.ApplyAdvance(c.Request().Context(), advanceID, invoiceID, amount)
	if err != nil {
		return err
	}
	return respond.OK(c, a)
}

func parseFloatParam(c echo.Context, name string) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, apperr.Validation("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Validation("%s must be a number", name)
	}
	return v, nil
}
