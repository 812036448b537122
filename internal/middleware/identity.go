package middleware

// identity.go holds the context keys set by JWTAuth and accessors for
// handlers and other middleware.

import (
	"github.com/labstack/echo/v4"

	"github.com/restockr/restockr-api/internal/model"
)

const (
	ctxAccount = "account"
	ctxToken   = "access_token"
	ctxUserID  = "user_id"
	ctxRole    = "role"
)

// CurrentAccount returns the account authenticated by JWTAuth.
func CurrentAccount(c echo.Context) (model.Account, bool) {
	a, ok := c.Get(ctxAccount).(model.Account)
	return a, ok
}

// BearerToken returns the raw access token of the current request.
func BearerToken(c echo.Context) string {
	s, _ := c.Get(ctxToken).(string)
	return s
}

// userID returns the authenticated account id, or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
