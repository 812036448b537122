package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/restockr/restockr-api/internal/middleware"
	"github.com/restockr/restockr-api/internal/service"
)

// AccountHandler serves the authenticated owner's profile.
type AccountHandler struct {
	Accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{Accounts: accounts}
}

// Me returns the account resolved by JWTAuth.
func (h *AccountHandler) Me(c echo.Context) error {
	a, ok := middleware.CurrentAccount(c)
	if !ok {
		return WriteError(c, service.ErrAccountNotFound)
	}
	return c.JSON(http.StatusOK, newAccountView(a))
}

func (h *AccountHandler) UpdateMe(c echo.Context) error {
	a, ok := middleware.CurrentAccount(c)
	if !ok {
		return WriteError(c, service.ErrAccountNotFound)
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return WriteError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	updated, err := h.Accounts.UpdateProfile(ctx, a.ID, service.ProfileInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		City:        req.City,
	})
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, newAccountView(updated))
}

// DeleteMe deactivates the caller's account.  The access token in hand stops
// working on the next request because Authenticate requires an active
// account.
func (h *AccountHandler) DeleteMe(c echo.Context) error {
	a, ok := middleware.CurrentAccount(c)
	if !ok {
		return WriteError(c, service.ErrAccountNotFound)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Accounts.Deactivate(ctx, a.ID); err != nil {
		return WriteError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
