package handler

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/restockr/restockr-api/internal/service"
)

type errorResp struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError maps a service or validation error to an HTTP response.
// Anything it does not recognise is answered with a generic 500; the cause
// has already been logged and reported by the service.
func WriteError(c echo.Context, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for k, v := range verrs {
			fields[k] = v.Error()
		}
		return c.JSON(http.StatusBadRequest, errorResp{Error: "validation_failed", Message: "invalid request", Fields: fields})
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, service.ErrInfrastructure):
	case errors.Is(err, service.ErrWeakPassword):
		status, code = http.StatusBadRequest, "weak_password"
	case errors.Is(err, service.ErrInvalidPhone):
		status, code = http.StatusBadRequest, "invalid_phone"
	case errors.Is(err, service.ErrAlreadyActive):
		status, code = http.StatusBadRequest, "already_active"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrTokenExpired):
		status, code = http.StatusUnauthorized, "token_expired"
	case errors.Is(err, service.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, service.ErrMalformedToken):
		status, code = http.StatusUnauthorized, "malformed_token"
	case errors.Is(err, service.ErrInvalidTokenType):
		status, code = http.StatusUnauthorized, "invalid_token_type"
	case errors.Is(err, service.ErrTokenMismatch):
		status, code = http.StatusUnauthorized, "token_mismatch"
	case errors.Is(err, service.ErrRevoked):
		status, code = http.StatusUnauthorized, "token_revoked"
	case errors.Is(err, service.ErrAccountNotFound):
		status, code = http.StatusUnauthorized, "account_not_found"
	case errors.Is(err, service.ErrAccountNotActive):
		status, code = http.StatusForbidden, "account_not_active"
	case errors.Is(err, service.ErrEmailTaken):
		status, code = http.StatusConflict, "email_taken"
	case errors.Is(err, service.ErrPhoneTaken):
		status, code = http.StatusConflict, "phone_taken"
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}
	return c.JSON(status, errorResp{Error: code, Message: msg})
}

// writeActivationError answers activation failures.  A bad or expired
// activation token is a client mistake in the form, not a failed bearer
// authentication, so it is a 400.
func writeActivationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusBadRequest, errorResp{Error: "activation_expired", Message: err.Error()})
	case errors.Is(err, service.ErrInvalidToken):
		return c.JSON(http.StatusBadRequest, errorResp{Error: "invalid_activation_token", Message: err.Error()})
	}
	return WriteError(c, err)
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, errorResp{Error: "invalid_body", Message: "invalid body"})
}
