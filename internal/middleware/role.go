package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

// RequireRole rejects callers whose principal role is not in roles with
// 403. It must run after JWTAuth. This is a coarse route guard; the
// reservation policy still decides every individual operation.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[PrincipalFrom(c).Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "ROLE_MISMATCH"})
			}
			return next(c)
		}
	}
}
