package handler // handler defines http handlers

import (
    "errors"   // errors provides sentinel comparisons and errors.As
    "net/http" // HTTP status codes
    "strconv"  // strconv converts strings to numeric types

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/avelio/room-reservation/internal/model"      // model holds domain entities
    "github.com/avelio/room-reservation/internal/repository" // repository holds data access layer
    "github.com/avelio/room-reservation/internal/timeslot"   // timeslot formats interval clocks
    "github.com/avelio/room-reservation/internal/workflow"   // workflow holds the reservation engine
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// pathID parses the :id path parameter as a positive uint64.
func pathID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// writeWorkflowError maps engine errors onto HTTP responses.  Conflict
// and invalid-state failures are 409 so clients can distinguish a
// losable race from a malformed request.
func writeWorkflowError(c echo.Context, err error) error {
    var ve *workflow.ValidationError
    var ce *workflow.SlotConflictError
    var se *workflow.InvalidStateError
    switch {
    case errors.As(err, &ve):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field})
    case errors.As(err, &ce):
        return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error()})
    case errors.As(err, &se):
        return c.JSON(http.StatusConflict, echo.Map{"error": se.Error()})
    case errors.Is(err, workflow.ErrHoldsReleased):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, workflow.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, workflow.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    default:
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}

// reservationView is the JSON shape shared by list and detail responses.
type reservationView struct {
    ID             uint64  `json:"id"`
    Reference      string  `json:"reference"`
    Name           string  `json:"name"`
    Description    string  `json:"description,omitempty"`
    RequesterID    uint64  `json:"requester_id"`
    RoomID         uint64  `json:"room_id"`
    ApprovalState  string  `json:"approval_state"`
    PaymentState   string  `json:"payment_state"`
    DisplayStatus  string  `json:"display_status"`
    PaymentMethod  string  `json:"payment_method"`
    DepartmentCode string  `json:"department_code,omitempty"`
    TotalAmount    uint32  `json:"total_amount_cents"`
    RoomCost       uint32  `json:"room_cost_cents"`
    EquipmentCost  uint32  `json:"equipment_cost_cents"`
    BoothCost      uint32  `json:"booth_cost_cents"`
    StartsAt       *string `json:"starts_at,omitempty"`
    EndsAt         *string `json:"ends_at,omitempty"`
    PaymentDue     *string `json:"payment_deadline,omitempty"`
    RejectReason   string  `json:"reject_reason,omitempty"`
}

func viewReservation(res model.Reservation) reservationView {
    v := reservationView{
        ID:             res.ID,
        Reference:      res.Reference,
        Name:           res.Name,
        Description:    res.Description,
        RequesterID:    res.RequesterID,
        RoomID:         res.RoomID,
        ApprovalState:  res.ApprovalState,
        PaymentState:   res.PaymentState,
        DisplayStatus:  res.DisplayStatus,
        PaymentMethod:  res.PaymentMethod,
        DepartmentCode: res.DepartmentCode,
        TotalAmount:    res.TotalAmountCents,
        RoomCost:       res.RoomCostCents,
        EquipmentCost:  res.EquipmentCostCents,
        BoothCost:      res.BoothCostCents,
    }
    if res.RejectReason != nil {
        v.RejectReason = *res.RejectReason
    }
    const stamp = "2006-01-02T15:04:05Z07:00"
    if res.StartsAt != nil {
        s := res.StartsAt.Format(stamp)
        v.StartsAt = &s
    }
    if res.EndsAt != nil {
        s := res.EndsAt.Format(stamp)
        v.EndsAt = &s
    }
    if res.PaymentDeadline != nil {
        s := res.PaymentDeadline.Format(stamp)
        v.PaymentDue = &s
    }
    return v
}

// intervalView renders one held interval as date + clock range.
type intervalView struct {
    ResourceKind string `json:"resource_kind"`
    ResourceID   uint64 `json:"resource_id"`
    Date         string `json:"date"`
    Slot         string `json:"slot"`
    Status       string `json:"status"`
}

func viewIntervals(records []repository.ResourceIntervalRecord) []intervalView {
    out := make([]intervalView, 0, len(records))
    for _, rec := range records {
        out = append(out, intervalView{
            ResourceKind: rec.ResourceKind,
            ResourceID:   rec.ResourceID,
            Date:         rec.Date,
            Slot:         timeslot.Slot{Start: rec.StartMin, End: rec.EndMin}.String(),
            Status:       rec.Status,
        })
    }
    return out
}
