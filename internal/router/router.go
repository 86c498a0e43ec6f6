package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing

    "github.com/avelio/room-reservation/internal/handler"    // import the handlers that implement business logic
    "github.com/avelio/room-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
    "github.com/avelio/room-reservation/internal/model"      // import role constants
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Map the GET request at path "/healthz" to the Health handler.  This
    // endpoint can be used by load balancers or monitoring systems to verify
    // that the service is up and running.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    // Operations that do not require an existing session (register, login,
    // refresh).  Each of these handlers is responsible for generating or
    // exchanging tokens.
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // Refresh rotates the refresh token; refresh-access issues a new access
    // token without rotating.
    g.POST("/refresh", a.Refresh)
    g.POST("/refresh-access", a.RefreshAccess)
    // Logout accepts a JSON body containing a `refresh_token` and
    // invalidates it.  No JWT is required.
    g.POST("/logout", a.Logout)

    // Routes that require a valid access token.  Any of the three roles may
    // inspect its own identity.
    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.RequireRole(model.RoleRequester, model.RoleApprover, model.RoleAccountant))
    auth.GET("/me", a.Me)
}
