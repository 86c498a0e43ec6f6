package handler

import (
    "database/sql" // sql.ErrNoRows distinguishes a missing row from a DB failure
    "errors"       // errors.Is for sentinel comparison
    "net/http"     // HTTP status codes

    "github.com/avelio/room-reservation/internal/model"      // model holds domain entities
    "github.com/avelio/room-reservation/internal/repository" // repository layer
    "github.com/avelio/room-reservation/internal/workflow"   // workflow drives reservation state
    "github.com/labstack/echo/v4"                            // Echo web framework
)

// ReservationHandler exposes the booking lifecycle over HTTP.  All
// methods assume JWT authentication and role validation have already
// been performed by middleware; requester-only checks (cancel your own
// booking) are enforced again inside the workflow service.
type ReservationHandler struct {
    Flow         *workflow.Service           // reservation engine
    Reservations *repository.ReservationRepo // read-side listing
}

// NewReservationHandler constructs a ReservationHandler.  Both
// dependencies must be non-nil.
func NewReservationHandler(flow *workflow.Service, reservations *repository.ReservationRepo) *ReservationHandler {
    if flow == nil || reservations == nil {
        panic("nil dependency passed to NewReservationHandler")
    }
    return &ReservationHandler{Flow: flow, Reservations: reservations}
}

// Create handles POST /v1/reservations.  The body names a room, a
// date, the slot keys ("HH:MM-HH:MM") and any equipment to hold on the
// same date.  On success the reservation is created in
// PENDING_APPROVAL/UNPAID with every requested interval locked; a
// losing race over any interval returns 409 with the clashing range.
func (h *ReservationHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        Name           string   `json:"name"`
        Description    string   `json:"description"`
        RoomID         uint64   `json:"room_id"`
        Date           string   `json:"date"`
        Slots          []string `json:"slots"`
        EquipmentIDs   []uint64 `json:"equipment_ids"`
        PaymentMethod  string   `json:"payment_method"`
        DepartmentCode string   `json:"department_code"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    res, err := h.Flow.Create(c.Request().Context(), workflow.CreateInput{
        Name:           body.Name,
        Description:    body.Description,
        RequesterID:    userID,
        RoomID:         body.RoomID,
        Date:           body.Date,
        SlotKeys:       body.Slots,
        EquipmentIDs:   body.EquipmentIDs,
        PaymentMethod:  body.PaymentMethod,
        DepartmentCode: body.DepartmentCode,
    })
    if err != nil {
        return writeWorkflowError(c, err)
    }
    return c.JSON(http.StatusCreated, viewReservation(res))
}

// List handles GET /v1/reservations.  Requesters see their own
// bookings; approvers and accountants may filter the whole set with
// ?state=PENDING_APPROVAL etc.
func (h *ReservationHandler) List(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx := c.Request().Context()
    role, _ := c.Get("role").(string)
    var list []model.Reservation
    if role == model.RoleApprover || role == model.RoleAccountant {
        state := c.QueryParam("state")
        if state == "" {
            state = model.ApprovalPendingApproval
        }
        list, err = h.Reservations.ListByApprovalState(ctx, state)
    } else {
        list, err = h.Reservations.ListByRequester(ctx, userID)
    }
    if err != nil {
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]reservationView, 0, len(list))
    for _, res := range list {
        out = append(out, viewReservation(res))
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Detail handles GET /v1/reservations/:id and includes the held
// intervals alongside the reservation itself.
func (h *ReservationHandler) Detail(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    res, held, err := h.Flow.Get(c.Request().Context(), id)
    if err != nil {
        return writeWorkflowError(c, err)
    }
    role, _ := c.Get("role").(string)
    if role == model.RoleRequester && res.RequesterID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "reservation": viewReservation(res),
        "intervals":   viewIntervals(held),
    })
}

// Approve handles POST /v1/reservations/:id/approve.  Approver only.
// An optional discount_cents lowers the total; the payment deadline is
// stamped relative to today.
func (h *ReservationHandler) Approve(c echo.Context) error {
    approverID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    var body struct {
        DiscountCents uint32 `json:"discount_cents"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    res, err := h.Flow.Approve(c.Request().Context(), id, approverID, body.DiscountCents)
    if err != nil {
        return writeWorkflowError(c, err)
    }
    return c.JSON(http.StatusOK, viewReservation(res))
}

// Reject handles POST /v1/reservations/:id/reject.  Approver only; a
// non-empty reason is required and all held intervals are released.
func (h *ReservationHandler) Reject(c echo.Context) error {
    approverID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    var body struct {
        Reason string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    res, err := h.Flow.Reject(c.Request().Context(), id, approverID, body.Reason)
    if err != nil {
        return writeWorkflowError(c, err)
    }
    return c.JSON(http.StatusOK, viewReservation(res))
}

// Cancel handles POST /v1/reservations/:id/cancel.  Requesters cancel
// their own pending bookings outright; a confirmed booking goes
// through the refund path and the response reports the refund
// percentage earned by the remaining lead time.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    var body struct {
        Reason string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    ctx := c.Request().Context()
    current, err := h.Reservations.GetByID(ctx, id)
    if errors.Is(err, sql.ErrNoRows) {
        return writeWorkflowError(c, workflow.ErrNotFound)
    }
    if err != nil {
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if current.ApprovalState == model.ApprovalConfirmed {
        res, refundPct, err := h.Flow.CancelConfirmed(ctx, id, userID, body.Reason)
        if err != nil {
            return writeWorkflowError(c, err)
        }
        return c.JSON(http.StatusOK, echo.Map{
            "reservation": viewReservation(res),
            "refund_pct":  refundPct,
        })
    }
    res, err := h.Flow.Cancel(ctx, id, userID, body.Reason)
    if err != nil {
        return writeWorkflowError(c, err)
    }
    return c.JSON(http.StatusOK, viewReservation(res))
}
