package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/restockr/restockr-api/internal/handler"
	"github.com/restockr/restockr-api/internal/middleware"
	"github.com/restockr/restockr-api/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the authentication routes.  Operations that create
// or exchange credentials live under /v1/auth behind the rate limiter; logout
// and the profile endpoints live under /v1 and require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, acc *handler.AccountHandler, guard middleware.Authenticator, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/signup", a.Signup)
	g.POST("/resend-activation", a.ResendActivation)
	g.POST("/activate", a.Activate)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1",
		middleware.JWTAuth(guard, handler.WriteError),
		middleware.RequireRole(model.Roles...),
	)
	auth.POST("/auth/logout", a.Logout)
	auth.GET("/me", acc.Me)
	auth.PATCH("/me", acc.UpdateMe)
	auth.DELETE("/me", acc.DeleteMe)
}

// RegisterAdmin registers the read-only admin endpoints behind HTTP Basic.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, username, password string) {
	g := e.Group("/v1/admin", middleware.AdminBasicAuth(username, password))
	g.GET("/accounts", h.ListAccounts)
	g.GET("/accounts/:email", h.GetAccount)
}
