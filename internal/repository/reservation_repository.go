package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/avelio/room-reservation/internal/model"
)

// ReservationRepo provides CRUD and state-transition updates for the
// reservations table.  Transitions that read-then-write a reservation go
// through the *Tx variants so the workflow can hold a row lock for the
// whole critical section.  All timestamps are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a repo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, reference, name, description, requester_id, room_id,
    approval_state, payment_state, display_status, starts_at, ends_at, payment_deadline,
    payment_method, department_code, total_amount_cents, room_cost_cents, equipment_cost_cents, booth_cost_cents,
    reviewed_at, reviewed_by, approved_at, paid_at, cancelled_at, reject_reason,
    last_reminder_at, last_reminder_offset, created_at, updated_at`

func scanReservation(scan func(dest ...any) error) (model.Reservation, error) {
    var res model.Reservation
    var startsAt, endsAt, deadline, reviewedAt, approvedAt, paidAt, cancelledAt, reminderAt sql.NullTime
    var reviewedBy, reminderOffset sql.NullInt64
    var rejectReason sql.NullString
    err := scan(&res.ID, &res.Reference, &res.Name, &res.Description, &res.RequesterID, &res.RoomID,
        &res.ApprovalState, &res.PaymentState, &res.DisplayStatus, &startsAt, &endsAt, &deadline,
        &res.PaymentMethod, &res.DepartmentCode, &res.TotalAmountCents, &res.RoomCostCents, &res.EquipmentCostCents, &res.BoothCostCents,
        &reviewedAt, &reviewedBy, &approvedAt, &paidAt, &cancelledAt, &rejectReason,
        &reminderAt, &reminderOffset, &res.CreatedAt, &res.UpdatedAt)
    if err != nil {
        return res, err
    }
    if startsAt.Valid {
        t := startsAt.Time
        res.StartsAt = &t
    }
    if endsAt.Valid {
        t := endsAt.Time
        res.EndsAt = &t
    }
    if deadline.Valid {
        t := deadline.Time
        res.PaymentDeadline = &t
    }
    if reviewedAt.Valid {
        t := reviewedAt.Time
        res.ReviewedAt = &t
    }
    if reviewedBy.Valid {
        v := uint64(reviewedBy.Int64)
        res.ReviewedBy = &v
    }
    if approvedAt.Valid {
        t := approvedAt.Time
        res.ApprovedAt = &t
    }
    if paidAt.Valid {
        t := paidAt.Time
        res.PaidAt = &t
    }
    if cancelledAt.Valid {
        t := cancelledAt.Time
        res.CancelledAt = &t
    }
    if rejectReason.Valid {
        s := rejectReason.String
        res.RejectReason = &s
    }
    if reminderAt.Valid {
        t := reminderAt.Time
        res.LastReminderAt = &t
    }
    if reminderOffset.Valid {
        v := int(reminderOffset.Int64)
        res.LastReminderOffset = &v
    }
    return res, nil
}

// CreateTx inserts a new reservation in PENDING_APPROVAL/UNPAID and
// populates its generated ID.  The caller commits or rolls back.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    const q = `INSERT INTO reservations
        (reference, name, description, requester_id, room_id, approval_state, payment_state, display_status,
         payment_method, department_code, total_amount_cents, room_cost_cents, equipment_cost_cents, booth_cost_cents)
        VALUES (?, ?, ?, ?, ?, 'PENDING_APPROVAL', 'UNPAID', 'SCHEDULED', ?, ?, ?, ?, ?, ?)`
    out, err := tx.ExecContext(ctx, q, res.Reference, res.Name, res.Description, res.RequesterID, res.RoomID,
        res.PaymentMethod, res.DepartmentCode, res.TotalAmountCents, res.RoomCostCents, res.EquipmentCostCents, res.BoothCostCents)
    if err != nil {
        return err
    }
    id, err := out.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    res.ApprovalState = model.ApprovalPendingApproval
    res.PaymentState = model.PaymentUnpaid
    res.DisplayStatus = model.DisplayScheduled
    return nil
}

// GetByID loads one reservation.  Returns sql.ErrNoRows when absent.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    return scanReservation(r.db.QueryRowContext(ctx, q, id).Scan)
}

// GetForUpdateTx loads one reservation under a row lock so a state
// transition can read-then-write without racing another actor.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
    return scanReservation(tx.QueryRowContext(ctx, q, id).Scan)
}

// MarkPendingPaymentTx records an approval: the approval axis moves to
// PENDING_PAYMENT, the (possibly discounted) total and the payment
// deadline are stored, and the reviewer is stamped.
func (r *ReservationRepo) MarkPendingPaymentTx(ctx context.Context, tx *sql.Tx, id, approverID uint64, totalCents uint32, deadline time.Time) error {
    const q = `UPDATE reservations
               SET approval_state = 'PENDING_PAYMENT', total_amount_cents = ?, payment_deadline = ?,
                   reviewed_at = UTC_TIMESTAMP(), reviewed_by = ?
               WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, totalCents, deadline.UTC().Format("2006-01-02 15:04:05"), approverID, id)
    return err
}

// MarkRejectedTx records a rejection with its reason.
func (r *ReservationRepo) MarkRejectedTx(ctx context.Context, tx *sql.Tx, id, approverID uint64, reason string) error {
    const q = `UPDATE reservations
               SET approval_state = 'REJECTED', reject_reason = ?, reviewed_at = UTC_TIMESTAMP(), reviewed_by = ?
               WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, reason, approverID, id)
    return err
}

// MarkConfirmedTx finalises payment: both axes reach their terminal
// happy states and the aggregate start/end derived from the held
// intervals is persisted.
func (r *ReservationRepo) MarkConfirmedTx(ctx context.Context, tx *sql.Tx, id uint64, startsAt, endsAt time.Time) error {
    const q = `UPDATE reservations
               SET approval_state = 'CONFIRMED', payment_state = 'PAID',
                   starts_at = ?, ends_at = ?, approved_at = UTC_TIMESTAMP(), paid_at = UTC_TIMESTAMP()
               WHERE id = ?`
    _, err := tx.ExecContext(ctx, q,
        startsAt.UTC().Format("2006-01-02 15:04:05"), endsAt.UTC().Format("2006-01-02 15:04:05"), id)
    return err
}

// MarkCancelledTx records a cancellation (user-initiated or the
// sweeper's overdue cancellation) with its reason.
func (r *ReservationRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) error {
    const q = `UPDATE reservations
               SET approval_state = 'CANCELLED', reject_reason = ?, cancelled_at = UTC_TIMESTAMP()
               WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, reason, id)
    return err
}

// SetPaymentStateTx moves the payment axis (UNPAID,
// PENDING_VERIFICATION, PENDING_REUPLOAD transitions driven by proof
// submission and review).
func (r *ReservationRepo) SetPaymentStateTx(ctx context.Context, tx *sql.Tx, id uint64, state string) error {
    _, err := tx.ExecContext(ctx, `UPDATE reservations SET payment_state = ? WHERE id = ?`, state, id)
    return err
}

// UpdateDisplayStatus is used by the status advancer outside any
// workflow transaction; the display status is derived data.
func (r *ReservationRepo) UpdateDisplayStatus(ctx context.Context, id uint64, status string) error {
    _, err := r.db.ExecContext(ctx, `UPDATE reservations SET display_status = ? WHERE id = ?`, status, id)
    return err
}

// ListOverdue returns reservations awaiting payment whose deadline date
// fell strictly before today.  today is YYYY-MM-DD.
func (r *ReservationRepo) ListOverdue(ctx context.Context, today string) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE approval_state = 'PENDING_PAYMENT' AND payment_state <> 'PAID'
                 AND payment_deadline IS NOT NULL AND DATE(payment_deadline) < ?
               ORDER BY id`
    return r.list(ctx, q, today)
}

// ListByDeadlineDate returns reservations awaiting payment whose
// deadline falls exactly on the given date.  Used by the reminder task
// with today+3 and today+1.
func (r *ReservationRepo) ListByDeadlineDate(ctx context.Context, date string) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE approval_state = 'PENDING_PAYMENT' AND payment_state <> 'PAID'
                 AND payment_deadline IS NOT NULL AND DATE(payment_deadline) = ?
               ORDER BY id`
    return r.list(ctx, q, date)
}

// MarkReminderSent stamps the reminder dedup fields after a reminder
// notification went out.
func (r *ReservationRepo) MarkReminderSent(ctx context.Context, id uint64, offsetDays int) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE reservations SET last_reminder_at = UTC_TIMESTAMP(), last_reminder_offset = ? WHERE id = ?`,
        offsetDays, id)
    return err
}

// ListActiveConfirmed returns confirmed reservations whose display
// status has not reached COMPLETED; the status advancer ticks over
// these.
func (r *ReservationRepo) ListActiveConfirmed(ctx context.Context) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE approval_state = 'CONFIRMED' AND display_status <> 'COMPLETED'
               ORDER BY id`
    return r.list(ctx, q)
}

// ListByRequester returns a requester's reservations, newest first.
func (r *ReservationRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations WHERE requester_id = ? ORDER BY created_at DESC`
    return r.list(ctx, q, requesterID)
}

// ListByApprovalState returns reservations in one approval state,
// oldest first, for approver and accountant work queues.
func (r *ReservationRepo) ListByApprovalState(ctx context.Context, state string) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations WHERE approval_state = ? ORDER BY created_at`
    return r.list(ctx, q, state)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Reservation
    for rows.Next() {
        res, err := scanReservation(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, res)
    }
    return out, rows.Err()
}
