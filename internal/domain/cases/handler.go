package cases

import (
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

	g.POST("/cases", h.CreateCase)
	g.GET("/cases", h.ListCases)
	g.GET("/cases/:id", h.GetCase)
	g.POST("/cases/:id/close", h.CloseCase)
}

func (h *Handler) CreateCase(c echo.Context) error {
	var cs Case
	if err := c.Bind(&cs); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.CreateCase(c.Request().Context(), &cs); err != nil {
		return err
	}
	return respond.Created(c, cs)
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	cs, err := h.svc.GetCase(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, cs)
}

func (h *Handler) ListCases(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCases(c.Request().Context(), c.QueryParam("uhid"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CloseCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	cs, err := h.svc.CloseCase(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, cs)
}
