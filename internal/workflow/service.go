// Package workflow implements the reservation lifecycle: creation
// against the resource ledger, the approval and payment state
// machines, and the cancellation paths.  Every transition runs inside
// one transaction with the reservation row locked, so concurrent
// actors (approver, accountant, requester, scheduler) serialise per
// reservation.  Notifications go out after commit and never roll a
// transition back.
package workflow

import (
    "context"
    "database/sql"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/avelio/room-reservation/internal/ledger"
    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/notify"
    "github.com/avelio/room-reservation/internal/repository"
    "github.com/avelio/room-reservation/internal/timeslot"
)

// SystemCancelReason is the distinguishable reason string the overdue
// sweeper stamps on auto-cancelled reservations.
const SystemCancelReason = "payment deadline exceeded; cancelled by system"

// Refund percentage thresholds for cancelling a confirmed (paid)
// reservation, by full days remaining before its start.
const (
    refundFullDays = 7
    refundHalfDays = 3
)

// Service drives the reservation workflow.  Clock is injectable so
// tests can pin wall-clock time.
type Service struct {
    db           *sql.DB
    reservations *repository.ReservationRepo
    proofs       *repository.PaymentProofRepo
    rooms        *repository.RoomRepo
    equipment    *repository.EquipmentRepo
    ledger       *ledger.Ledger
    sink         notify.Sink
    audit        *repository.AuditRepo

    Clock        func() time.Time
    DeadlineDays int
}

// NewService wires a workflow service.  deadlineDays is how long an
// approved reservation stays payable before the sweeper cancels it.
func NewService(db *sql.DB, reservations *repository.ReservationRepo, proofs *repository.PaymentProofRepo,
    rooms *repository.RoomRepo, equipment *repository.EquipmentRepo, lg *ledger.Ledger,
    sink notify.Sink, audit *repository.AuditRepo, deadlineDays int) *Service {
    return &Service{
        db:           db,
        reservations: reservations,
        proofs:       proofs,
        rooms:        rooms,
        equipment:    equipment,
        ledger:       lg,
        sink:         sink,
        audit:        audit,
        Clock:        func() time.Time { return time.Now().UTC() },
        DeadlineDays: deadlineDays,
    }
}

// CreateInput carries a candidate booking: a room, a date, the slot
// keys ("HH:MM-HH:MM") and any equipment to hold alongside the room.
type CreateInput struct {
    Name           string
    Description    string
    RequesterID    uint64
    RoomID         uint64
    Date           string // YYYY-MM-DD
    SlotKeys       []string
    EquipmentIDs   []uint64
    PaymentMethod  string
    DepartmentCode string
}

// Create validates the input, checks the ledger for conflicts and, when
// clear, persists the reservation in PENDING_APPROVAL/UNPAID with all
// requested intervals LOCKED.  The conflict check and the lock happen
// in one guarded transaction; two overlapping bookings racing for the
// same resource-day cannot both succeed.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Reservation, error) {
    var zero model.Reservation
    if strings.TrimSpace(in.Name) == "" {
        return zero, &ValidationError{Field: "name", Msg: "must not be empty"}
    }
    if in.RoomID == 0 {
        return zero, &ValidationError{Field: "room_id", Msg: "a room must be selected"}
    }
    if in.PaymentMethod != model.PayMethodCounter && in.PaymentMethod != model.PayMethodTransfer {
        return zero, &ValidationError{Field: "payment_method", Msg: "must be COUNTER or TRANSFER"}
    }
    if _, err := time.Parse("2006-01-02", in.Date); err != nil {
        return zero, &ValidationError{Field: "date", Msg: "must be YYYY-MM-DD"}
    }
    if len(in.SlotKeys) == 0 {
        return zero, &ValidationError{Field: "slot_keys", Msg: "at least one slot is required"}
    }

    room, err := s.rooms.GetByID(ctx, in.RoomID)
    if err != nil {
        if err == repository.ErrRoomNotFound {
            return zero, &ValidationError{Field: "room_id", Msg: "room does not exist"}
        }
        return zero, err
    }
    slots, err := timeslot.ParseKeys(in.SlotKeys, room.SlotMinutes, room.OpenMin, room.CloseMin)
    if err != nil {
        return zero, &ValidationError{Field: "slot_keys", Msg: err.Error()}
    }

    resourceNames := map[string]string{holdKey(model.ResourceRoom, room.ID): room.Name}
    holds := []ledger.Hold{{Kind: model.ResourceRoom, ResourceID: room.ID, Date: in.Date, Slots: slots}}
    var equipmentCost, boothCost uint32
    // A repeated id would hold (and price) the same item twice on the
    // same resource-day, so each piece of equipment counts once.
    seenEquipment := make(map[uint64]bool, len(in.EquipmentIDs))
    for _, eqID := range in.EquipmentIDs {
        if seenEquipment[eqID] {
            continue
        }
        seenEquipment[eqID] = true
        eq, err := s.equipment.GetByID(ctx, eqID)
        if err != nil {
            if err == repository.ErrEquipmentNotFound {
                return zero, &ValidationError{Field: "equipment_ids", Msg: fmt.Sprintf("equipment %d does not exist", eqID)}
            }
            return zero, err
        }
        resourceNames[holdKey(model.ResourceEquipment, eq.ID)] = eq.Name
        holds = append(holds, ledger.Hold{Kind: model.ResourceEquipment, ResourceID: eq.ID, Date: in.Date, Slots: slots})
        if eq.Kind == model.EquipmentBooth {
            boothCost += eq.DailyRateCents
        } else {
            equipmentCost += eq.DailyRateCents
        }
    }

    var minutes int
    for _, sl := range slots {
        minutes += sl.End - sl.Start
    }
    roomCost := room.HourlyRateCents * uint32(minutes) / 60

    res := model.Reservation{
        Reference:          uuid.NewString(),
        Name:               strings.TrimSpace(in.Name),
        Description:        in.Description,
        RequesterID:        in.RequesterID,
        RoomID:             in.RoomID,
        PaymentMethod:      in.PaymentMethod,
        DepartmentCode:     in.DepartmentCode,
        RoomCostCents:      roomCost,
        EquipmentCostCents: equipmentCost,
        BoothCostCents:     boothCost,
        TotalAmountCents:   roomCost + equipmentCost + boothCost,
    }

    // The guard is held across the whole transaction so the conflict
    // check and the lock insertion are one atomic unit per resource-day.
    unlock := s.ledger.Guard(holds)
    defer unlock()

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return zero, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := s.reservations.CreateTx(ctx, tx, &res); err != nil {
        return zero, err
    }
    if err := s.ledger.LockTx(ctx, tx, res.ID, holds); err != nil {
        if ce, ok := err.(*ledger.ConflictError); ok {
            c := ce.Conflicts[0]
            name := resourceNames[holdKey(c.Existing.ResourceKind, c.Existing.ResourceID)]
            if name == "" {
                name = fmt.Sprintf("%s %d", strings.ToLower(c.Existing.ResourceKind), c.Existing.ResourceID)
            }
            return zero, &SlotConflictError{
                ResourceName: name,
                Date:         c.Existing.Date,
                Requested:    c.Requested,
                Existing:     c.Existing.Slot(),
            }
        }
        return zero, err
    }
    if err := tx.Commit(); err != nil {
        return zero, err
    }
    committed = true

    s.audit.Record(ctx, in.RequesterID, "reservation.create",
        fmt.Sprintf("reservation %d (%s) room %d date %s slots %d", res.ID, res.Reference, res.RoomID, in.Date, len(slots)))
    s.send(s.event(notify.KindReservationCreated, res.RequesterID, res,
        "Reservation received",
        fmt.Sprintf("Your reservation %q for %s on %s is awaiting approval.", res.Name, room.Name, in.Date)))
    s.send(s.event(notify.KindReservationCreated, room.OwnerID, res,
        "New reservation request",
        fmt.Sprintf("%q requested %s on %s.", res.Name, room.Name, in.Date)))
    return res, nil
}

// Approve moves a PENDING_APPROVAL reservation to PENDING_PAYMENT:
// the holds are promoted to RESERVED, the deadline is stamped and an
// optional discount is applied (never below zero).  If the holds were
// released by a racing cancellation the approval fails with
// ErrHoldsReleased.
func (s *Service) Approve(ctx context.Context, id, approverID uint64, discountCents uint32) (model.Reservation, error) {
    var res model.Reservation
    var deadline time.Time
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        var err error
        res, err = s.reservations.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return mapNoRows(err)
        }
        if res.ApprovalState != model.ApprovalPendingApproval {
            return &InvalidStateError{Op: "approve", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        promoted, err := s.ledger.PromoteTx(ctx, tx, id)
        if err != nil {
            return err
        }
        if promoted == 0 {
            return ErrHoldsReleased
        }
        total := res.TotalAmountCents
        if discountCents >= total {
            total = 0
        } else {
            total -= discountCents
        }
        deadline = s.Clock().AddDate(0, 0, s.DeadlineDays)
        if err := s.reservations.MarkPendingPaymentTx(ctx, tx, id, approverID, total, deadline); err != nil {
            return err
        }
        res.ApprovalState = model.ApprovalPendingPayment
        res.TotalAmountCents = total
        res.PaymentDeadline = &deadline
        return nil
    })
    if err != nil {
        return res, err
    }

    s.audit.Record(ctx, approverID, "reservation.approve",
        fmt.Sprintf("reservation %d approved, deadline %s", id, deadline.Format("2006-01-02")))
    s.send(s.event(notify.KindReservationApproved, res.RequesterID, res,
        "Reservation approved — payment required",
        fmt.Sprintf("Reservation %q was approved. Pay %d cents via %s before %s or it will be cancelled.",
            res.Name, res.TotalAmountCents, strings.ToLower(res.PaymentMethod), deadline.Format("2006-01-02"))))
    return res, nil
}

// Reject declines a reservation that is pending approval or payment
// and releases every interval it holds.
func (s *Service) Reject(ctx context.Context, id, approverID uint64, reason string) (model.Reservation, error) {
    if strings.TrimSpace(reason) == "" {
        return model.Reservation{}, &ValidationError{Field: "reason", Msg: "must not be empty"}
    }
    var res model.Reservation
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        var err error
        res, err = s.reservations.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return mapNoRows(err)
        }
        if res.ApprovalState != model.ApprovalPendingApproval && res.ApprovalState != model.ApprovalPendingPayment {
            return &InvalidStateError{Op: "reject", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        if err := s.reservations.MarkRejectedTx(ctx, tx, id, approverID, reason); err != nil {
            return err
        }
        if _, err := s.ledger.ReleaseTx(ctx, tx, id); err != nil {
            return err
        }
        res.ApprovalState = model.ApprovalRejected
        res.RejectReason = &reason
        return nil
    })
    if err != nil {
        return res, err
    }

    s.audit.Record(ctx, approverID, "reservation.reject", fmt.Sprintf("reservation %d: %s", id, reason))
    s.send(s.event(notify.KindReservationRejected, res.RequesterID, res,
        "Reservation rejected",
        fmt.Sprintf("Reservation %q was rejected: %s", res.Name, reason)))
    return res, nil
}

// ConfirmPayment finalises a verified payment: payment axis to PAID,
// approval axis to CONFIRMED, and the aggregate start/end derived from
// the held intervals.  It is normally invoked through proof approval;
// this exported variant runs in its own transaction.
func (s *Service) ConfirmPayment(ctx context.Context, id uint64) (model.Reservation, error) {
    var res model.Reservation
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        var err error
        res, err = s.reservations.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return mapNoRows(err)
        }
        return s.confirmPaymentTx(ctx, tx, &res)
    })
    if err != nil {
        return res, err
    }
    s.notifyConfirmed(ctx, res)
    return res, nil
}

// confirmPaymentTx performs the confirmation inside the caller's
// transaction; res must have been loaded FOR UPDATE.
func (s *Service) confirmPaymentTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    if res.ApprovalState != model.ApprovalPendingPayment || res.PaymentState != model.PaymentPendingVerification {
        return &InvalidStateError{Op: "confirm payment", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
    }
    held, err := s.ledger.HeldByReservationTx(ctx, tx, res.ID)
    if err != nil {
        return err
    }
    if len(held) == 0 {
        return ErrHoldsReleased
    }
    startsAt := intervalStart(held[0])
    endsAt := intervalEnd(held[0])
    for _, rec := range held[1:] {
        if st := intervalStart(rec); st.Before(startsAt) {
            startsAt = st
        }
        if en := intervalEnd(rec); en.After(endsAt) {
            endsAt = en
        }
    }
    if err := s.reservations.MarkConfirmedTx(ctx, tx, res.ID, startsAt, endsAt); err != nil {
        return err
    }
    res.ApprovalState = model.ApprovalConfirmed
    res.PaymentState = model.PaymentPaid
    res.StartsAt = &startsAt
    res.EndsAt = &endsAt
    return nil
}

func (s *Service) notifyConfirmed(ctx context.Context, res model.Reservation) {
    s.audit.Record(ctx, 0, "reservation.confirm", fmt.Sprintf("reservation %d confirmed", res.ID))
    body := fmt.Sprintf("Reservation %q is confirmed.", res.Name)
    if res.StartsAt != nil && res.EndsAt != nil {
        body = fmt.Sprintf("Reservation %q is confirmed for %s to %s.",
            res.Name, res.StartsAt.Format(time.RFC3339), res.EndsAt.Format(time.RFC3339))
    }
    s.send(s.event(notify.KindReservationConfirmed, res.RequesterID, res, "Reservation confirmed", body))
}

// Cancel withdraws a reservation that has not been confirmed yet.
// actorID 0 means the system acts; otherwise the actor must be the
// requester.  All held intervals are released.
func (s *Service) Cancel(ctx context.Context, id, actorID uint64, reason string) (model.Reservation, error) {
    var res model.Reservation
    var notifyFinance bool
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        var err error
        res, err = s.reservations.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return mapNoRows(err)
        }
        if actorID != 0 && res.RequesterID != actorID {
            return ErrForbidden
        }
        if res.ApprovalState != model.ApprovalPendingApproval && res.ApprovalState != model.ApprovalPendingPayment {
            return &InvalidStateError{Op: "cancel", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        notifyFinance = res.PaymentState == model.PaymentPendingVerification
        if err := s.reservations.MarkCancelledTx(ctx, tx, id, reason); err != nil {
            return err
        }
        if _, err := s.ledger.ReleaseTx(ctx, tx, id); err != nil {
            return err
        }
        res.ApprovalState = model.ApprovalCancelled
        res.RejectReason = &reason
        return nil
    })
    if err != nil {
        return res, err
    }

    s.audit.Record(ctx, actorID, "reservation.cancel", fmt.Sprintf("reservation %d: %s", id, reason))
    s.send(s.event(notify.KindReservationCancelled, res.RequesterID, res,
        "Reservation cancelled", fmt.Sprintf("Reservation %q was cancelled: %s", res.Name, reason)))
    if notifyFinance {
        // Payment evidence was already submitted; finance decides whether
        // anything needs refunding.
        s.send(s.event(notify.KindRefundRequested, 0, res,
            "Cancelled with payment under review",
            fmt.Sprintf("Reservation %q was cancelled while a payment proof was pending review.", res.Name)))
    }
    return res, nil
}

// CancelConfirmed is the refund-aware cancellation path for confirmed
// (paid) reservations.  The refund percentage depends on how many full
// days remain before the reservation starts.  Intervals are released
// and finance is notified with the computed percentage; the payment
// axis stays PAID pending the refund.
func (s *Service) CancelConfirmed(ctx context.Context, id, actorID uint64, reason string) (model.Reservation, int, error) {
    var res model.Reservation
    refundPct := 0
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        var err error
        res, err = s.reservations.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return mapNoRows(err)
        }
        if actorID != 0 && res.RequesterID != actorID {
            return ErrForbidden
        }
        if res.ApprovalState != model.ApprovalConfirmed {
            return &InvalidStateError{Op: "cancel confirmed", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        if res.StartsAt != nil {
            daysLeft := int(res.StartsAt.Sub(s.Clock()).Hours() / 24)
            switch {
            case daysLeft >= refundFullDays:
                refundPct = 100
            case daysLeft >= refundHalfDays:
                refundPct = 50
            }
        }
        if err := s.reservations.MarkCancelledTx(ctx, tx, id, reason); err != nil {
            return err
        }
        if _, err := s.ledger.ReleaseTx(ctx, tx, id); err != nil {
            return err
        }
        res.ApprovalState = model.ApprovalCancelled
        res.RejectReason = &reason
        return nil
    })
    if err != nil {
        return res, 0, err
    }

    s.audit.Record(ctx, actorID, "reservation.cancel_confirmed",
        fmt.Sprintf("reservation %d: %s (refund %d%%)", id, reason, refundPct))
    s.send(s.event(notify.KindReservationCancelled, res.RequesterID, res,
        "Reservation cancelled",
        fmt.Sprintf("Reservation %q was cancelled. A refund of %d%% will be processed.", res.Name, refundPct)))
    s.send(s.event(notify.KindRefundRequested, 0, res,
        "Refund required",
        fmt.Sprintf("Reservation %q (paid %d cents) cancelled; refund %d%%.", res.Name, res.TotalAmountCents, refundPct)))
    return res, refundPct, nil
}

// CancelOverdue is the sweeper's path: it re-checks under the row lock
// that the reservation is still pending payment past its deadline,
// cancels it with the system reason and releases the holds.  The
// caller sends the notification so a delivery failure cannot touch the
// transition.
func (s *Service) CancelOverdue(ctx context.Context, id uint64) (model.Reservation, error) {
    var res model.Reservation
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        var err error
        res, err = s.reservations.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return mapNoRows(err)
        }
        if res.ApprovalState != model.ApprovalPendingPayment || res.PaymentState == model.PaymentPaid {
            return &InvalidStateError{Op: "cancel overdue", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        if res.PaymentDeadline == nil || !res.PaymentDeadline.Before(startOfDay(s.Clock())) {
            return &InvalidStateError{Op: "cancel overdue", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        if err := s.reservations.MarkCancelledTx(ctx, tx, id, SystemCancelReason); err != nil {
            return err
        }
        if _, err := s.ledger.ReleaseTx(ctx, tx, id); err != nil {
            return err
        }
        res.ApprovalState = model.ApprovalCancelled
        return nil
    })
    if err != nil {
        return res, err
    }
    s.audit.Record(ctx, 0, "reservation.cancel_overdue", fmt.Sprintf("reservation %d", id))
    return res, nil
}

// Get loads one reservation together with its held intervals.
func (s *Service) Get(ctx context.Context, id uint64) (model.Reservation, []repository.ResourceIntervalRecord, error) {
    res, err := s.reservations.GetByID(ctx, id)
    if err != nil {
        return res, nil, mapNoRows(err)
    }
    held, err := s.ledger.HeldByReservation(ctx, id)
    if err != nil {
        return res, nil, err
    }
    return res, held, nil
}

// NotifyCancelled emits the cancellation notice for an auto-cancelled
// reservation.  Split from CancelOverdue so the sweeper can isolate
// notification failures per reservation.
func (s *Service) NotifyCancelled(res model.Reservation) error {
    return s.sink.Send(s.event(notify.KindReservationCancelled, res.RequesterID, res,
        "Reservation cancelled — payment overdue",
        fmt.Sprintf("Reservation %q was cancelled automatically: %s.", res.Name, SystemCancelReason)))
}

// ---- helpers ----

func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    if err := fn(tx); err != nil {
        _ = tx.Rollback()
        return err
    }
    return tx.Commit()
}

func (s *Service) send(ev notify.Event) {
    if s.sink == nil {
        return
    }
    if err := s.sink.Send(ev); err != nil {
        log.Printf("workflow: notify %s failed: %v", ev.Kind, err)
    }
}

func (s *Service) event(kind string, recipient uint64, res model.Reservation, subject, body string) notify.Event {
    return notify.Event{
        ID:            uuid.NewString(),
        Kind:          kind,
        RecipientID:   recipient,
        ReservationID: res.ID,
        Reference:     res.Reference,
        Subject:       subject,
        Body:          body,
        EmittedAt:     s.Clock().Format(time.RFC3339),
    }
}

func holdKey(kind string, id uint64) string { return fmt.Sprintf("%s:%d", kind, id) }

func mapNoRows(err error) error {
    if err == sql.ErrNoRows {
        return ErrNotFound
    }
    return err
}

func startOfDay(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intervalStart(rec repository.ResourceIntervalRecord) time.Time {
    d, _ := time.Parse("2006-01-02", rec.Date)
    return d.Add(time.Duration(rec.StartMin) * time.Minute)
}

func intervalEnd(rec repository.ResourceIntervalRecord) time.Time {
    d, _ := time.Parse("2006-01-02", rec.Date)
    return d.Add(time.Duration(rec.EndMin) * time.Minute)
}
