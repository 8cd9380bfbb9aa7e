package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/middleware"
	"github.com/DoHyunDaniel/reservation-api-project/internal/reservation"
)

// localTimeLayout is accepted alongside RFC 3339 and read as UTC.
const localTimeLayout = "2006-01-02T15:04:05"

type createReservationReq struct {
	StoreID         uint64 `json:"store_id"`
	ReservationTime string `json:"reservation_time"`
	PhoneNumber     string `json:"phone_number"`
}

func parseReservationTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(localTimeLayout, raw, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// CreateReservation handles POST /v1/reservations.
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	at, ok := parseReservationTime(req.ReservationTime)
	if !ok {
		return badRequest(c, "INVALID_RESERVATION_TIME", "reservation_time must be RFC 3339 or YYYY-MM-DDTHH:MM:SS")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	r, err := h.Engine.Create(ctx, middleware.PrincipalFrom(c), reservation.CreateInput{
		StoreID:         req.StoreID,
		ReservationTime: at,
		PhoneNumber:     req.PhoneNumber,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toResp(r))
}

// ListMyReservations handles GET /v1/my-reservations. Canceled
// reservations are left out.
func (h *ReservationHandler) ListMyReservations(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	rs, err := h.Engine.ListForCustomer(ctx, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRespList(rs))
}

// CancelReservation handles PUT /v1/reservations/:id/cancel.
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	r, err := h.Engine.Cancel(ctx, middleware.PrincipalFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toResp(r))
}

// DeleteReservation handles DELETE /v1/reservations/:id and removes the
// row outright.
func (h *ReservationHandler) DeleteReservation(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	deleted, err := h.Engine.Delete(ctx, middleware.PrincipalFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation_id": deleted})
}

// CheckInReservation handles PUT /v1/reservations/:id/check-in.
func (h *ReservationHandler) CheckInReservation(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Engine.CheckIn(ctx, middleware.PrincipalFrom(c), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation_id": id, "status": "CHECKED_IN"})
}
