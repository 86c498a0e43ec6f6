// Package notify defines the notification events the workflow and the
// reconciliation scheduler emit, and the Sink they are delivered
// through.  Delivery is fire-and-forget: senders log failures and
// never propagate them into the state transition that triggered the
// notification.
package notify

// Event kinds.
const (
    KindReservationCreated   = "reservation.created"
    KindReservationApproved  = "reservation.approved"
    KindReservationRejected  = "reservation.rejected"
    KindReservationConfirmed = "reservation.confirmed"
    KindReservationCancelled = "reservation.cancelled"
    KindPaymentReminder      = "payment.reminder"
    KindProofSubmitted       = "payment.proof_submitted"
    KindProofRejected        = "payment.proof_rejected"
    KindRefundRequested      = "payment.refund_requested"
    KindRoomPrepare          = "room.prepare"
)

// Event is one notification message.  RecipientID 0 addresses a role
// inbox (finance, room owner fan-out) rather than a single user.
type Event struct {
    ID            string `json:"id"`
    Kind          string `json:"kind"`
    RecipientID   uint64 `json:"recipient_id"`
    ReservationID uint64 `json:"reservation_id,omitempty"`
    Reference     string `json:"reference,omitempty"`
    Subject       string `json:"subject"`
    Body          string `json:"body"`
    EmittedAt     string `json:"emitted_at"`
}

// Sink delivers events to whatever transport is configured.  Failures
// are returned so callers can log them, but callers must not let a
// delivery failure roll back a committed transition.
type Sink interface {
    Send(event Event) error
}
