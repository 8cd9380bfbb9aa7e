// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/handler"
	"github.com/DoHyunDaniel/reservation-api-project/internal/middleware"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

// Options carries the middleware shared by routes. Nil middleware is
// skipped. Attach it per route, never to a group: a group with middleware
// claims every unknown path under its prefix.
type Options struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

func (o Options) chain(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// authed is JWT, then the rate limiter keyed by the resolved user, then
// the role guard.
func (o Options) authed(roles ...model.Role) []echo.MiddlewareFunc {
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(o.JWTSecret), o.RateLimit}
	if len(roles) > 0 {
		mws = append(mws, middleware.RequireRole(roles...))
	}
	return o.chain(mws...)
}

// RegisterRoutes mounts the operational endpoints. metrics may be nil.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, metrics *middleware.HTTPMetrics) {
	e.GET("/healthz", health)
	if metrics != nil {
		e.GET("/metrics", metrics.Handler())
	}
}

// RegisterAuth mounts sign-up, sign-in and token endpoints.
func RegisterAuth(e *echo.Echo, h *handler.AuthHandler, o Options) {
	public := o.chain(o.RateLimit)
	g := e.Group("/v1/auth")
	g.POST("/register", h.Register, public...)
	g.POST("/login", h.Login, public...)
	g.POST("/refresh", h.Refresh, public...)
	g.POST("/logout", h.Logout, public...)

	e.GET("/v1/me", h.Me, o.authed()...)
}

// RegisterPublic mounts the anonymous store directory and store reviews.
func RegisterPublic(e *echo.Echo, h *handler.StoreHandler, r *handler.ReviewHandler, o Options) {
	cached := o.chain(o.RateLimit, o.Cache)
	e.GET("/v1/stores", h.ListStores, cached...)
	e.GET("/v1/stores/:id/reviews", r.ListStoreReviews, cached...)
}
