package invoice

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/auth"
	"github.com/hims/billing/internal/platform/respond"
	"github.com/hims/billing/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(billing *echo.Group) {
	g := billing.Group("", auth.RequireRole("admin", "billing"))

	g.POST("/cases/:id/invoices", h.CreateInvoice)
	g.GET("/cases/:id/invoices", h.ListByCase)
	g.GET("/invoices/:id", h.GetInvoice)
	g.GET("/invoices/:id/lines", h.GetLineItems)
	g.POST("/invoices/:id/lines/manual", h.AddManualItem)
	g.POST("/invoices/:id/lines/:lineID/void", h.VoidItem)
	g.POST("/invoices/:id/discounts/percent", h.ApplyPercentDiscount)
	g.POST("/invoices/:id/discounts/amount", h.ApplyAmountDiscount)
	g.POST("/invoices/:id/approve", h.Approve)
	g.POST("/invoices/:id/post", h.Post)
	g.POST("/invoices/:id/void", h.VoidInvoice)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		BillingType string `json:"billing_type"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	inv := &Invoice{CaseID: caseID, BillingType: body.BillingType}
	if err := h.svc.CreateInvoice(c.Request().Context(), inv); err != nil {
		return err
	}
	return respond.Created(c, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, inv)
}

func (h *Handler) ListByCase(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByCase(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetLineItems(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.GetLineItems(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*LineItem{}
	}
	return respond.OK(c, items)
}

// AddManualItem binds its payload from query parameters (primitive
// FastAPI-style binding kept for caller compatibility): description, qty,
// unit_price, tax_rate.
func (h *Handler) AddManualItem(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	qty, err := parseFloatParam(c, "qty")
	if err != nil {
		return err
	}
	unitPrice, err := parseFloatParam(c, "unit_price")
	if err != nil {
		return err
	}
	taxRate := 0.0
	if c.QueryParam("tax_rate") != "" {
		if taxRate, err = parseFloatParam(c, "tax_rate"); err != nil {
			return err
		}
	}
	item, err := h.svc.AddManualItem(c.Request().Context(), id, c.QueryParam("description"), qty, unitPrice, taxRate)
	if err != nil {
		return err
	}
	return respond.Created(c, item)
}

func (h *Handler) VoidItem(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	lineID, err := parseID(c, "lineID")
	if err != nil {
		return err
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.VoidItem(c.Request().Context(), id, lineID, body.Reason); err != nil {
		return err
	}
	return respond.OK(c, map[string]interface{}{"voided": true})
}

func (h *Handler) ApplyPercentDiscount(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Percent      float64 `json:"percent"`
		Remarks      string  `json:"remarks"`
		AuthorizedBy string  `json:"authorized_by"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	item, err := h.svc.ApplyPercentDiscount(c.Request().Context(), id, body.Percent, body.Remarks, body.AuthorizedBy)
	if err != nil {
		return err
	}
	return respond.Created(c, item)
}

func (h *Handler) ApplyAmountDiscount(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Amount       float64 `json:"amount"`
		Remarks      string  `json:"remarks"`
		AuthorizedBy string  `json:"authorized_by"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	item, err := h.svc.ApplyAmountDiscount(c.Request().Context(), id, body.Amount, body.Remarks, body.AuthorizedBy)
	if err != nil {
		return err
	}
	return respond.Created(c, item)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.svc.Approve(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, inv)
}

func (h *Handler) Post(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.svc.Post(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, inv)
}

func (h *Handler) VoidInvoice(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	inv, err := h.svc.VoidInvoice(c.Request().Context(), id, body.Reason)
	if err != nil {
		return err
	}
	return respond.OK(c, inv)
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
