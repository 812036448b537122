package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/restockr/restockr-api/internal/middleware"
	"github.com/restockr/restockr-api/internal/model"
	"github.com/restockr/restockr-api/internal/service"
)

const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     *service.AuthService
	Accounts *service.AccountService
}

func NewAuthHandler(auth *service.AuthService, accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{Auth: auth, Accounts: accounts}
}

// Signup: create an inactive account; the activation link goes out by email.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = normEmail(req.Email)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := req.Validate(); err != nil {
		return WriteError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, err := h.Accounts.Signup(ctx, service.SignupInput{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Role:        model.Role(req.Role),
		City:        req.City,
	})
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusCreated, newAccountView(a))
}

// ResendActivation always answers 202 so callers cannot probe for accounts.
func (h *AuthHandler) ResendActivation(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = normEmail(req.Email)
	if err := req.Validate(); err != nil {
		return WriteError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Accounts.ResendActivation(ctx, req.Email); err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "if the account is awaiting activation a new link has been sent"})
}

// Activate: set the first password using the emailed token.
func (h *AuthHandler) Activate(c echo.Context) error {
	var req activateReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = normEmail(req.Email)
	req.Token = strings.TrimSpace(req.Token)
	if err := req.Validate(); err != nil {
		return WriteError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.Activate(ctx, req.Email, req.Token, req.Password); err != nil {
		return writeActivationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "account activated"})
}

// Login: verify and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = normEmail(req.Email)
	if err := req.Validate(); err != nil {
		return WriteError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, newTokenResp(pair))
}

// Refresh: rotate the refresh token and issue a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if err := req.Validate(); err != nil {
		return WriteError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, newTokenResp(pair))
}

// Logout revokes the presented access token and drops the refresh token.
// It runs behind JWTAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	revoked, err := h.Auth.Logout(ctx, middleware.BearerToken(c))
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out", "access_token_revoked": revoked})
}
