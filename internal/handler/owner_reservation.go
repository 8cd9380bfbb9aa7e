package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/middleware"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/policy"
)

type decisionReq struct {
	Status string `json:"status"` // CONFIRMED or REJECTED
}

// ListPendingForOwner handles GET /v1/owner/reservations/pending.
func (h *ReservationHandler) ListPendingForOwner(c echo.Context) error {
	p, err := authorizeList(c, "reservation.list_pending_owner", policy.ActionListPendingForOwner)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	rs, err := h.Engine.ListPendingForOwner(ctx, p.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRespList(rs))
}

// ListByStatusForOwner handles GET /v1/owner/reservations?status=X.
func (h *ReservationHandler) ListByStatusForOwner(c echo.Context) error {
	p, err := authorizeList(c, "reservation.list_owner_status", policy.ActionListForOwnerByStatus)
	if err != nil {
		return writeError(c, err)
	}
	status, err := model.ParseStatus(c.QueryParam("status"))
	if err != nil {
		return badRequest(c, "INVALID_STATUS", err.Error())
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	rs, err := h.Engine.ListForOwnerByStatus(ctx, p.UserID, status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRespList(rs))
}

// ConfirmReservation handles PUT /v1/owner/reservations/:id/decision with
// a body of {"status": "CONFIRMED"|"REJECTED"}.
func (h *ReservationHandler) ConfirmReservation(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid reservation id")
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	// Unknown values reach the engine as "" and come back as INVALID_DECISION_STATUS.
	next, _ := model.ParseStatus(req.Status)

	ctx, cancel := requestCtx(c)
	defer cancel()
	r, err := h.Engine.Decide(ctx, middleware.PrincipalFrom(c), id, next)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toResp(r))
}
