package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// AdminBasicAuth guards admin routes with HTTP Basic credentials.  Both
// fields are always compared in constant time so that neither a wrong
// username nor a wrong password returns early.
func AdminBasicAuth(username, password string) echo.MiddlewareFunc {
	return echomw.BasicAuthWithConfig(echomw.BasicAuthConfig{
		Realm: "admin",
		Validator: func(u, p string, c echo.Context) (bool, error) {
			userOK := subtle.ConstantTimeCompare([]byte(u), []byte(username))
			passOK := subtle.ConstantTimeCompare([]byte(p), []byte(password))
			return userOK&passOK == 1, nil
		},
	})
}
