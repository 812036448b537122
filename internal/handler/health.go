package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RevocationStatus reports whether access tokens can currently be revoked.
// *service.AuthService implements it.
type RevocationStatus interface {
	RevocationDegraded() bool
}

// HealthHandler reports liveness of the database and the revocation
// registry.  It is used by load balancers and monitoring.
type HealthHandler struct {
	DB         *sql.DB
	Revocation RevocationStatus
}

func NewHealthHandler(db *sql.DB, rev RevocationStatus) *HealthHandler {
	return &HealthHandler{DB: db, Revocation: rev}
}

// Health answers 200 while the database responds.  A degraded revocation
// registry is reported but does not fail the check.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	db := "ok"
	if h.DB == nil || h.DB.PingContext(ctx) != nil {
		db, status, code = "down", "unavailable", http.StatusServiceUnavailable
	}
	revocation := "ok"
	if h.Revocation != nil && h.Revocation.RevocationDegraded() {
		revocation = "degraded"
	}
	return c.JSON(code, echo.Map{"status": status, "db": db, "revocation": revocation})
}
