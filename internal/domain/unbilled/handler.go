package unbilled

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/auth"
	"github.com/hims/billing/internal/platform/middleware"
	"github.com/hims/billing/internal/platform/respond"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the unbilled routes. The import route honors
// Idempotency-Key so a client retry after a timeout cannot double-bill.
func (h *Handler) RegisterRoutes(billing *echo.Group, idem middleware.IdempotencyStore) {
	g := billing.Group("", auth.RequireRole("admin", "billing"))

	g.GET("/cases/:id/unbilled", h.ListUnbilled)
	g.POST("/invoices/:id/import", h.ImportSelected, middleware.Idempotency(idem))
}

func (h *Handler) ListUnbilled(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	records, err := h.svc.ListUnbilled(c.Request().Context(), caseID)
	if err != nil {
		return err
	}
	if records == nil {
		records = []Record{}
	}
	return respond.OK(c, records)
}

func (h *Handler) ImportSelected(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var body struct {
		UIDs []string `json:"uids"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}

	result, err := h.svc.ImportSelected(c.Request().Context(), invoiceID, body.UIDs)
	if err != nil {
		// A partial import still reports the committed successes.
		if apperr.IsKind(err, apperr.KindPartialImport) {
			detail := respond.ErrorDetailOf(err)
			return c.JSON(http.StatusMultiStatus, map[string]interface{}{
				"status": false,
				"msg":    detail.Msg,
				"data":   result,
				"error":  detail,
			})
		}
		return err
	}
	return respond.OK(c, result)
}
