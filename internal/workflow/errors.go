package workflow

import (
    "errors"
    "fmt"

    "github.com/avelio/room-reservation/internal/timeslot"
)

// ErrNotFound is returned when the reservation or proof id is unknown.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller may not act on the
// reservation (e.g. cancelling someone else's booking).
var ErrForbidden = errors.New("forbidden")

// ErrHoldsReleased is returned when an approval finds the
// reservation's interval holds gone — a racing cancellation released
// them.  The approval must fail loudly rather than silently re-lock.
var ErrHoldsReleased = errors.New("reservation no longer holds any intervals")

// ValidationError reports missing or malformed input on create/submit
// operations.  Field names the offending input.
type ValidationError struct {
    Field string
    Msg   string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// SlotConflictError is returned when a requested time range overlaps
// an interval held by another reservation.  It names the resource and
// both ranges so the caller can render a precise message.
type SlotConflictError struct {
    ResourceName string
    Date         string
    Requested    timeslot.Slot
    Existing     timeslot.Slot
}

func (e *SlotConflictError) Error() string {
    return fmt.Sprintf("%s is already booked %s on %s (requested %s)",
        e.ResourceName, e.Existing, e.Date, e.Requested)
}

// InvalidStateError is returned when an operation is attempted from a
// state that does not permit it, e.g. approving an already-approved
// reservation.
type InvalidStateError struct {
    Op            string
    ApprovalState string
    PaymentState  string
}

func (e *InvalidStateError) Error() string {
    return fmt.Sprintf("cannot %s a reservation in state %s/%s", e.Op, e.ApprovalState, e.PaymentState)
}
