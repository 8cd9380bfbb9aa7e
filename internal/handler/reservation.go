package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/middleware"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/policy"
	"github.com/DoHyunDaniel/reservation-api-project/internal/reservation"
)

const requestTimeout = 5 * time.Second

// ReservationHandler exposes the reservation lifecycle over HTTP. Customer,
// owner and admin endpoints live in separate files and share the engine.
type ReservationHandler struct {
	Engine *reservation.Service
}

func NewReservationHandler(engine *reservation.Service) *ReservationHandler {
	if engine == nil {
		panic("nil engine passed to NewReservationHandler")
	}
	return &ReservationHandler{Engine: engine}
}

type reservationResp struct {
	ID              uint64     `json:"id"`
	UserID          uint64     `json:"user_id"`
	StoreID         uint64     `json:"store_id"`
	ReservationTime time.Time  `json:"reservation_time"`
	PhoneNumber     string     `json:"phone_number"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

func toResp(r model.Reservation) reservationResp {
	return reservationResp{
		ID:              r.ID,
		UserID:          r.UserID,
		StoreID:         r.StoreID,
		ReservationTime: r.ReservationTime,
		PhoneNumber:     r.PhoneNumber,
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toRespList(rs []model.Reservation) []reservationResp {
	out := make([]reservationResp, 0, len(rs))
	for _, r := range rs {
		out = append(out, toResp(r))
	}
	return out
}

// requestCtx bounds engine calls made for a request.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// authorizeList runs the policy for listings the engine leaves to its
// callers and returns the engine error describing a denial.
func authorizeList(c echo.Context, op string, action policy.Action) (model.Principal, error) {
	p := middleware.PrincipalFrom(c)
	d := policy.Decide(p, action, nil)
	if d.Allowed {
		return p, nil
	}
	slog.Warn("reservation access denied",
		slog.String("op", op),
		slog.Uint64("user_id", p.UserID),
		slog.String("role", string(p.Role)),
		slog.String("reason", string(d.Reason)))
	if d.Reason == policy.ReasonUnauthenticated {
		return p, reservation.AuthenticationError(nil)
	}
	return p, reservation.Forbidden(op)
}
