package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

const principalKey = "principal"

func setPrincipal(c echo.Context, p model.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the caller resolved by JWTAuth. Routes outside
// JWTAuth get the zero, unauthenticated principal.
func PrincipalFrom(c echo.Context) model.Principal {
	if p, ok := c.Get(principalKey).(model.Principal); ok {
		return p
	}
	return model.Principal{}
}

// userKey identifies the caller for rate limiting; "anon" when unknown.
func userKey(c echo.Context) string {
	if p := PrincipalFrom(c); p.Authenticated() {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "anon"
}
