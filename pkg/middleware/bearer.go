package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// Bearer rejects requests whose Authorization header does not carry the
// shared token. Comparison is constant time.
func Bearer(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			provided, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || provided == "" {
				return httperror.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				return httperror.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
			}

			return next(c)
		}
	}
}
