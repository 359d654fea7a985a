package insurance

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/auth"
	"github.com/hims/billing/internal/platform/respond"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the insurance, preauth, and claim routes. Preauth
// and claim action routes are case-agnostic, keyed only by their own id.
func (h *Handler) RegisterRoutes(billing *echo.Group) {
	g := billing.Group("", auth.RequireRole("admin", "billing"))

	g.GET("/cases/:id/insurance", h.GetInsurance)
	g.PUT("/cases/:id/insurance", h.UpsertInsurance)
	g.GET("/cases/:id/insurance/lines", h.GetLines)
	g.PATCH("/cases/:id/insurance/lines", h.PatchLines)
	g.POST("/cases/:id/insurance/split", h.SplitInvoices)

	g.POST("/cases/:id/preauths", h.CreatePreauth)
	g.GET("/cases/:id/preauths", h.ListPreauths)
	g.POST("/cases/:id/preauths/:preauthID/submit", h.SubmitPreauth)
	g.POST("/preauths/:id/approve", h.ApprovePreauth)
	g.POST("/preauths/:id/partial", h.PartialApprovePreauth)
	g.POST("/preauths/:id/reject", h.RejectPreauth)
	g.GET("/preauths/:id/history", h.PreauthHistory)

	g.POST("/cases/:id/claims", h.CreateClaim)
	g.GET("/cases/:id/claims", h.ListClaims)
	g.POST("/claims/:id/submit", h.SubmitClaim)
	g.POST("/claims/:id/query", h.QueryClaim)
	g.POST("/claims/:id/resubmit", h.ResubmitClaim)
	g.POST("/claims/:id/approve", h.ApproveClaim)
	g.POST("/claims/:id/deny", h.DenyClaim)
	g.POST("/claims/:id/settle", h.SettleClaim)
	g.GET("/claims/:id/history", h.ClaimHistory)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// -- insurance case --

func (h *Handler) GetInsurance(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.svc.GetInsurance(c.Request().Context(), caseID)
	if err != nil {
		return err
	}
	return respond.OK(c, res)
}

func (h *Handler) UpsertInsurance(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		PayerID       string       `json:"payer_id"`
		PayerName     string       `json:"payer_name"`
		TPAID         *string      `json:"tpa_id"`
		PolicyNo      *string      `json:"policy_no"`
		CoverageLines []*LinePatch `json:"coverage_lines"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	ic := &InsuranceCase{
		CaseID:    caseID,
		PayerID:   body.PayerID,
		PayerName: body.PayerName,
		TPAID:     body.TPAID,
		PolicyNo:  body.PolicyNo,
	}
	lines := make([]*CoverageLine, 0, len(body.CoverageLines))
	for _, p := range body.CoverageLines {
		lines = append(lines, &CoverageLine{Category: p.Category, CoveragePct: p.CoveragePct})
	}
	if err := h.svc.UpsertInsurance(c.Request().Context(), ic, lines); err != nil {
		return err
	}
	return respond.OK(c, ic)
}

func (h *Handler) GetLines(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	lines, err := h.svc.GetLines(c.Request().Context(), caseID)
	if err != nil {
		return err
	}
	return respond.OK(c, lines)
}

// PatchLines binds a bare JSON list, not an object wrapper.
func (h *Handler) PatchLines(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var patches []LinePatch
	if err := c.Bind(&patches); err != nil {
		return apperr.Validation("request body must be a list of line patches")
	}
	lines, err := h.svc.PatchLines(c.Request().Context(), caseID, patches)
	if err != nil {
		return err
	}
	return respond.OK(c, lines)
}

func (h *Handler) SplitInvoices(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	allowPaidSplit, _ := strconv.ParseBool(c.QueryParam("allow_paid_split"))
	var body struct {
		InvoiceIDs []uuid.UUID `json:"invoice_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	splits, err := h.svc.SplitInvoices(c.Request().Context(), caseID, body.InvoiceIDs, allowPaidSplit)
	if err != nil {
		return err
	}
	return respond.OK(c, splits)
}

// -- preauth --

func (h *Handler) CreatePreauth(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		RequestedAmount float64 `json:"requested_amount"`
		Remarks         string  `json:"remarks"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.svc.CreatePreauth(c.Request().Context(), caseID, body.RequestedAmount, body.Remarks)
	if err != nil {
		return err
	}
	return respond.Created(c, p)
}

func (h *Handler) ListPreauths(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListPreauths(c.Request().Context(), caseID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Preauth{}
	}
	return respond.OK(c, items)
}

func (h *Handler) SubmitPreauth(c echo.Context) error {
	preauthID, err := parseID(c, "preauthID")
	if err != nil {
		return err
	}
	p, err := h.svc.SubmitPreauth(c.Request().Context(), preauthID)
	if err != nil {
		return err
	}
	return respond.OK(c, p)
}

func (h *Handler) ApprovePreauth(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		ApprovedAmount float64 `json:"approved_amount"`
		Note           string  `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.svc.ApprovePreauth(c.Request().Context(), id, body.ApprovedAmount, body.Note)
	if err != nil {
		return err
	}
	return respond.OK(c, p)
}

func (h *Handler) PartialApprovePreauth(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		ApprovedAmount float64 `json:"approved_amount"`
		Note           string  `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.svc.PartialApprovePreauth(c.Request().Context(), id, body.ApprovedAmount, body.Note)
	if err != nil {
		return err
	}
	return respond.OK(c, p)
}

func (h *Handler) RejectPreauth(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.svc.RejectPreauth(c.Request().Context(), id, body.Note)
	if err != nil {
		return err
	}
	return respond.OK(c, p)
}

func (h *Handler) PreauthHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	events, err := h.svc.PreauthHistory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*Event{}
	}
	return respond.OK(c, events)
}

// -- claim --

func (h *Handler) CreateClaim(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		InvoiceIDs []uuid.UUID `json:"invoice_ids"`
		Remarks    string      `json:"remarks"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	cl, err := h.svc.CreateClaim(c.Request().Context(), caseID, body.InvoiceIDs, body.Remarks)
	if err != nil {
		return err
	}
	return respond.Created(c, cl)
}

func (h *Handler) ListClaims(c echo.Context) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListClaims(c.Request().Context(), caseID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Claim{}
	}
	return respond.OK(c, items)
}

func (h *Handler) SubmitClaim(c echo.Context) error {
	return h.claimAction(c, func(ctx echo.Context, id uuid.UUID, note string) (*Claim, error) {
		return h.svc.SubmitClaim(ctx.Request().Context(), id)
	})
}

func (h *Handler) QueryClaim(c echo.Context) error {
	return h.claimAction(c, func(ctx echo.Context, id uuid.UUID, note string) (*Claim, error) {
		return h.svc.QueryClaim(ctx.Request().Context(), id, note)
	})
}

func (h *Handler) ResubmitClaim(c echo.Context) error {
	return h.claimAction(c, func(ctx echo.Context, id uuid.UUID, note string) (*Claim, error) {
		return h.svc.ResubmitClaim(ctx.Request().Context(), id, note)
	})
}

func (h *Handler) ApproveClaim(c echo.Context) error {
	return h.claimAction(c, func(ctx echo.Context, id uuid.UUID, note string) (*Claim, error) {
		return h.svc.ApproveClaim(ctx.Request().Context(), id, note)
	})
}

func (h *Handler) DenyClaim(c echo.Context) error {
	return h.claimAction(c, func(ctx echo.Context, id uuid.UUID, note string) (*Claim, error) {
		return h.svc.DenyClaim(ctx.Request().Context(), id, note)
	})
}

func (h *Handler) SettleClaim(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		ReferenceNo string `json:"reference_no"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	cl, err := h.svc.SettleClaim(c.Request().Context(), id, body.ReferenceNo)
	if err != nil {
		return err
	}
	return respond.OK(c, cl)
}

func (h *Handler) ClaimHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	events, err := h.svc.ClaimHistory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*Event{}
	}
	return respond.OK(c, events)
}

func (h *Handler) claimAction(c echo.Context, fn func(echo.Context, uuid.UUID, string) (*Claim, error)) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	cl, err := fn(c, id, body.Note)
	if err != nil {
		return err
	}
	return respond.OK(c, cl)
}
