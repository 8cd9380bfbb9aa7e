package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/policy"
)

// ListAllReservations handles GET /v1/admin/reservations.
func (h *ReservationHandler) ListAllReservations(c echo.Context) error {
	if _, err := authorizeList(c, "reservation.list_all", policy.ActionListAllReservations); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	rs, err := h.Engine.ListAll(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRespList(rs))
}

// ListAllByStatus handles GET /v1/admin/reservations/status?status=X.
func (h *ReservationHandler) ListAllByStatus(c echo.Context) error {
	if _, err := authorizeList(c, "reservation.list_all_status", policy.ActionListAllByStatus); err != nil {
		return writeError(c, err)
	}
	status, err := model.ParseStatus(c.QueryParam("status"))
	if err != nil {
		return badRequest(c, "INVALID_STATUS", err.Error())
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	rs, err := h.Engine.ListAllByStatus(ctx, status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRespList(rs))
}
