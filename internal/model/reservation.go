package model

import "time"

// Approval axis states for a reservation.  PENDING_APPROVAL and
// PENDING_PAYMENT are the two live phases; CONFIRMED, REJECTED and
// CANCELLED are terminal.
const (
    ApprovalPendingApproval = "PENDING_APPROVAL"
    ApprovalPendingPayment  = "PENDING_PAYMENT"
    ApprovalConfirmed       = "CONFIRMED"
    ApprovalRejected        = "REJECTED"
    ApprovalCancelled       = "CANCELLED"
)

// Payment axis states.  They are only meaningful while the approval
// axis is PENDING_PAYMENT or CONFIRMED.
const (
    PaymentUnpaid              = "UNPAID"
    PaymentPendingVerification = "PENDING_VERIFICATION"
    PaymentPaid                = "PAID"
    PaymentPendingReupload     = "PENDING_REUPLOAD"
)

// Display statuses derived from wall-clock time against the
// reservation's held intervals.  PREPARING only applies to
// single-interval reservations inside the configured lead window.
const (
    DisplayScheduled  = "SCHEDULED"
    DisplayPreparing  = "PREPARING"
    DisplayInProgress = "IN_PROGRESS"
    DisplayCompleted  = "COMPLETED"
)

// Payment methods accepted on creation.
const (
    PayMethodCounter  = "COUNTER"
    PayMethodTransfer = "TRANSFER"
)

// Reservation is the booking aggregate.  It tracks two independent
// state axes (approval, payment) plus a derived display status, the
// cost breakdown and the timestamps stamped by each actor in the
// workflow.  The intervals it holds live in resource_intervals and
// reference this row via reservation_id.
//
// Fields:
//  ID              – primary key identifier.
//  Reference       – opaque UUID handed to clients and notifications.
//  Name            – event title; must be non-empty.
//  Description     – free-form event description.
//  RequesterID     – user who created the reservation.
//  RoomID          – room being reserved.
//  ApprovalState   – approval axis state (see constants above).
//  PaymentState    – payment axis state.
//  DisplayStatus   – wall-clock derived status, kept current by the
//                    reconciliation scheduler.
//  StartsAt/EndsAt – nil until payment is confirmed; then the min
//                    start / max end over all held intervals.
//  PaymentDeadline – nil until approval; the date by which payment
//                    must complete before the sweeper cancels.
//  PaymentMethod   – COUNTER or TRANSFER.
//  DepartmentCode  – cost-center charged for the booking.
//  TotalAmountCents and the cost breakdown fields carry pricing
//                    through the workflow; approval may discount the
//                    total but never below zero.
//  ReviewedAt/By, ApprovedAt, PaidAt, CancelledAt, RejectReason –
//                    stamps recorded on each transition.
//  LastReminderAt / LastReminderOffset – dedup bookkeeping for the
//                    payment-deadline reminder task.
type Reservation struct {
    ID                 uint64
    Reference          string
    Name               string
    Description        string
    RequesterID        uint64
    RoomID             uint64
    ApprovalState      string
    PaymentState       string
    DisplayStatus      string
    StartsAt           *time.Time
    EndsAt             *time.Time
    PaymentDeadline    *time.Time
    PaymentMethod      string
    DepartmentCode     string
    TotalAmountCents   uint32
    RoomCostCents      uint32
    EquipmentCostCents uint32
    BoothCostCents     uint32
    ReviewedAt         *time.Time
    ReviewedBy         *uint64
    ApprovedAt         *time.Time
    PaidAt             *time.Time
    CancelledAt        *time.Time
    RejectReason       *string
    LastReminderAt     *time.Time
    LastReminderOffset *int
    CreatedAt          time.Time
    UpdatedAt          time.Time
}
