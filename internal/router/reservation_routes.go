package router

import (
    "github.com/labstack/echo/v4"

    "github.com/avelio/room-reservation/internal/handler"
    "github.com/avelio/room-reservation/internal/middleware"
    "github.com/avelio/room-reservation/internal/model"
)

// RegisterReservations registers the booking lifecycle endpoints under
// /v1.  Requesters create, list, inspect and cancel their own bookings
// and upload payment proofs.  Approvers review pending requests.
// Accountants verify proofs; proof review confirms the reservation.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, p *handler.ProofHandler, jwtSecret string) {
    // Requester-scoped endpoints.
    req := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleRequester),
    )
    req.POST("/reservations", h.Create)
    req.POST("/reservations/:id/cancel", h.Cancel)
    req.POST("/reservations/:id/proofs", p.Submit)

    // Listing and detail are shared: requesters see their own bookings,
    // approvers and accountants see the review queues.
    shared := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleRequester, model.RoleApprover, model.RoleAccountant),
    )
    shared.GET("/reservations", h.List)
    shared.GET("/reservations/:id", h.Detail)
    shared.GET("/reservations/:id/proofs", p.ListByReservation)

    // Approver-scoped review endpoints.
    apr := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleApprover),
    )
    apr.POST("/reservations/:id/approve", h.Approve)
    apr.POST("/reservations/:id/reject", h.Reject)

    // Accountant-scoped proof review.
    acc := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleAccountant),
    )
    acc.POST("/proofs/:id/approve", p.Approve)
    acc.POST("/proofs/:id/reject", p.Reject)
}
