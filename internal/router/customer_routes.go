package router

import (
	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/handler"
)

// RegisterCustomer mounts the customer reservation and review endpoints.
// Any signed-in principal may call them; the policy enforces ownership.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, r *handler.ReviewHandler, o Options) {
	mw := o.authed()
	g := e.Group("/v1")
	g.POST("/reservations", h.CreateReservation, mw...)
	g.GET("/my-reservations", h.ListMyReservations, mw...)
	g.PUT("/reservations/:id/cancel", h.CancelReservation, mw...)
	g.DELETE("/reservations/:id", h.DeleteReservation, mw...)
	g.PUT("/reservations/:id/check-in", h.CheckInReservation, mw...)

	g.POST("/reviews", r.CreateReview, mw...)
	g.PUT("/reviews/:id", r.UpdateReview, mw...)
	g.DELETE("/reviews/:id", r.DeleteReview, mw...)
}
