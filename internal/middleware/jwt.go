package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/restockr/restockr-api/internal/model"
)

// Authenticator resolves a bearer access token to the account it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (model.Account, error)
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(c echo.Context, err error) error

// JWTAuth returns an Echo middleware that passes every request through the
// Authenticate guard.  On success the account, its id, its role and the raw
// token are stored in the context (see CurrentAccount and BearerToken).
func JWTAuth(auth Authenticator, onError ErrorWriter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			acc, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return onError(c, err)
			}
			c.Set(ctxAccount, acc)
			c.Set(ctxToken, raw)
			c.Set(ctxUserID, strconv.FormatUint(acc.ID, 10))
			c.Set(ctxRole, string(acc.Role))
			return next(c)
		}
	}
}

// bearerFromHeader accepts "Bearer <token>" with a case-insensitive scheme.
func bearerFromHeader(h string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
