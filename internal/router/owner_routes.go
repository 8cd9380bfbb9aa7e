package router

import (
	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/handler"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

// RegisterOwner mounts OWNER endpoints: managing the owner's stores and
// their reservation queue.
func RegisterOwner(e *echo.Echo, h *handler.ReservationHandler, s *handler.StoreHandler, o Options) {
	mw := o.authed(model.RoleOwner)
	g := e.Group("/v1")
	g.POST("/stores", s.RegisterStore, mw...)
	g.PUT("/stores/:id", s.UpdateStore, mw...)
	g.DELETE("/stores/:id", s.DeleteStore, mw...)
	g.GET("/owner/reservations/pending", h.ListPendingForOwner, mw...)
	g.GET("/owner/reservations", h.ListByStatusForOwner, mw...)
	g.PUT("/owner/reservations/:id/decision", h.ConfirmReservation, mw...)
}
