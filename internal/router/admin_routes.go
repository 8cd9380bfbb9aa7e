package router

import (
	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/handler"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

// RegisterAdmin mounts the ADMIN audit views.
func RegisterAdmin(e *echo.Echo, h *handler.ReservationHandler, o Options) {
	mw := o.authed(model.RoleAdmin)
	g := e.Group("/v1/admin")
	g.GET("/reservations", h.ListAllReservations, mw...)
	g.GET("/reservations/status", h.ListAllByStatus, mw...)
}
