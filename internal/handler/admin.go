package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/restockr/restockr-api/internal/service"
)

// AdminHandler exposes read-only account lookups behind HTTP Basic auth.
type AdminHandler struct {
	Accounts *service.AccountService
}

func NewAdminHandler(accounts *service.AccountService) *AdminHandler {
	return &AdminHandler{Accounts: accounts}
}

// ListAccounts handles GET /v1/admin/accounts?page=&page_size=.
func (h *AdminHandler) ListAccounts(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResp{Error: "invalid_query", Message: "page must be a number"})
	}
	size, err := queryInt(c, "page_size")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResp{Error: "invalid_query", Message: "page_size must be a number"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Accounts.List(ctx, page, size)
	if err != nil {
		return WriteError(c, err)
	}
	out := pageResp{Total: p.Total, Page: p.Page, PageSize: p.PageSize, Accounts: make([]accountView, 0, len(p.Accounts))}
	for _, a := range p.Accounts {
		out.Accounts = append(out.Accounts, newAccountView(a))
	}
	return c.JSON(http.StatusOK, out)
}

// GetAccount handles GET /v1/admin/accounts/:email.
func (h *AdminHandler) GetAccount(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, err := h.Accounts.Lookup(ctx, normEmail(c.Param("email")))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, errorResp{Error: "not_found", Message: "account not found"})
		}
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, newAccountView(a))
}

// queryInt reads an optional integer query parameter; missing means 0.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
