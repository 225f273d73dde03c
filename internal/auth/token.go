package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/opensandbox/marimoproxy/pkg/types"
)

// TokenMiddleware validates the request token against the configured one.
// The token is read the way Jupyter clients send it: an
// "Authorization: token <t>" or "Bearer <t>" header, an X-API-Key header,
// or a ?token= query parameter.
// If the configured token is empty, authentication is disabled (development mode).
func TokenMiddleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return next(c)
			}

			provided := requestToken(c)
			if provided == "" {
				return c.JSON(http.StatusUnauthorized, types.ToolFailure{
					Error: "missing token",
				})
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				return c.JSON(http.StatusForbidden, types.ToolFailure{
					Error: "invalid token",
				})
			}

			return next(c)
		}
	}
}

func requestToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && (strings.EqualFold(scheme, "token") || strings.EqualFold(scheme, "bearer")) {
			return strings.TrimSpace(value)
		}
	}
	if key := c.Request().Header.Get("X-API-Key"); key != "" {
		return key
	}
	return c.QueryParam("token")
}
