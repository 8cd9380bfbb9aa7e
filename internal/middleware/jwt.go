package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/reservation"
	"github.com/DoHyunDaniel/reservation-api-project/internal/utils"
)

// JWTAuth validates the Bearer access token and stores the resolved
// principal in the request context (see PrincipalFrom). Requests without
// a usable token are answered with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				return unauthenticated(c)
			}
			p, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				c.Logger().Debugf("jwt: %v", err)
				return unauthenticated(c)
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error": reservation.Message(reservation.CodeInvalidToken),
		"code":  reservation.CodeInvalidToken,
	})
}
