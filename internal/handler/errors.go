package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/reservation"
)

var kindStatus = map[reservation.Kind]int{
	reservation.KindNotFound:               http.StatusNotFound,
	reservation.KindUnauthorized:           http.StatusForbidden,
	reservation.KindAuthentication:         http.StatusUnauthorized,
	reservation.KindDuplicateBooking:       http.StatusConflict,
	reservation.KindInvalidStateTransition: http.StatusConflict,
	reservation.KindAlreadyCheckedIn:       http.StatusConflict,
	reservation.KindConflict:               http.StatusConflict,
	reservation.KindOutsideCheckInWindow:   http.StatusUnprocessableEntity,
	reservation.KindInvalidArgument:        http.StatusBadRequest,
	reservation.KindInternal:               http.StatusInternalServerError,
}

// StatusFor maps an engine error kind onto an HTTP status.
func StatusFor(k reservation.Kind) int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders an engine error as {"error", "code"}. Causes of
// internal errors are logged and never sent to the client.
func writeError(c echo.Context, err error) error {
	code := reservation.CodeInternal
	var re *reservation.Error
	if errors.As(err, &re) && re.Kind != reservation.KindInternal {
		code = re.Code
	} else {
		slog.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("route", c.Path()),
			slog.Any("error", err))
	}
	return c.JSON(StatusFor(reservation.KindOf(err)), echo.Map{"error": reservation.Message(code), "code": code})
}

// rejection is a failure decided by a handler outside the reservation
// engine, rendered in the same {"error", "code"} shape.
type rejection struct {
	status int
	code   string
	msg    string
}

func (r *rejection) render(c echo.Context) error {
	return c.JSON(r.status, echo.Map{"error": r.msg, "code": r.code})
}

// internalRejection logs err and hides it behind INTERNAL.
func internalRejection(c echo.Context, op string, err error) *rejection {
	slog.Error("request failed",
		slog.String("op", op),
		slog.String("method", c.Request().Method),
		slog.String("route", c.Path()),
		slog.Any("error", err))
	return &rejection{http.StatusInternalServerError, string(reservation.CodeInternal), reservation.Message(reservation.CodeInternal)}
}

func badRequest(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": code})
}

// pathID parses the :id parameter as a positive integer.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
