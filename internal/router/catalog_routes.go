package router

import (
    "github.com/labstack/echo/v4"

    "github.com/avelio/room-reservation/internal/handler"
    "github.com/avelio/room-reservation/internal/middleware"
    "github.com/avelio/room-reservation/internal/model"
)

// RegisterCatalog registers room and equipment endpoints under /v1.
// Browsing and availability are open to any authenticated role;
// catalog management is approver-only.  The availability route takes
// an optional response-cache middleware so repeated polls of the same
// room/date hit Redis instead of the database.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, jwtSecret string, cache echo.MiddlewareFunc) {
    browse := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleRequester, model.RoleApprover, model.RoleAccountant),
    )
    browse.GET("/rooms", h.ListRooms)
    browse.GET("/equipment", h.ListEquipment)
    if cache != nil {
        browse.GET("/rooms/:id/availability", h.Availability, cache)
    } else {
        browse.GET("/rooms/:id/availability", h.Availability)
    }

    manage := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleApprover),
    )
    manage.POST("/rooms", h.CreateRoom)
    manage.POST("/equipment", h.CreateEquipment)
}
