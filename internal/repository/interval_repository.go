package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/avelio/room-reservation/internal/timeslot"
)

// ResourceIntervalRecord mirrors the resource_intervals table.  One row is
// one bookable unit of a resource (room or equipment) on a date.  Rows are
// never hard-deleted: releasing a hold flips the row back to AVAILABLE,
// clears reservation_id and stamps released_at as the audit marker.
type ResourceIntervalRecord struct {
    ID            uint64
    ResourceKind  string // ROOM | EQUIPMENT
    ResourceID    uint64
    Date          string // YYYY-MM-DD
    StartMin      int    // minutes since midnight, inclusive
    EndMin        int    // minutes since midnight, exclusive
    Status        string // AVAILABLE | LOCKED | RESERVED
    ReservationID *uint64
    LockedAt      *time.Time
    ReleasedAt    *time.Time
}

// Slot returns the record's time range as a timeslot.Slot.
func (r ResourceIntervalRecord) Slot() timeslot.Slot {
    return timeslot.Slot{Start: r.StartMin, End: r.EndMin}
}

// ResourceIntervalRepo provides data access to the resource_intervals
// table.  All status mutations must go through the ledger package; no
// other component flips interval status directly.
type ResourceIntervalRepo struct {
    db *sql.DB
}

// NewResourceIntervalRepo returns a repo bound to the provided database.
func NewResourceIntervalRepo(db *sql.DB) *ResourceIntervalRepo { return &ResourceIntervalRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *ResourceIntervalRepo) DB() *sql.DB { return r.db }

const intervalColumns = `id, resource_kind, resource_id, date, start_min, end_min, status, reservation_id, locked_at, released_at`

func scanInterval(scan func(dest ...any) error) (ResourceIntervalRecord, error) {
    var rec ResourceIntervalRecord
    var date time.Time
    var resID sql.NullInt64
    var lockedAt, releasedAt sql.NullTime
    err := scan(&rec.ID, &rec.ResourceKind, &rec.ResourceID, &date, &rec.StartMin, &rec.EndMin,
        &rec.Status, &resID, &lockedAt, &releasedAt)
    if err != nil {
        return rec, err
    }
    rec.Date = date.Format("2006-01-02")
    if resID.Valid {
        v := uint64(resID.Int64)
        rec.ReservationID = &v
    }
    if lockedAt.Valid {
        t := lockedAt.Time
        rec.LockedAt = &t
    }
    if releasedAt.Valid {
        t := releasedAt.Time
        rec.ReleasedAt = &t
    }
    return rec, nil
}

// HeldForUpdateTx loads every LOCKED or RESERVED interval for one resource
// and date, taking row locks so that a concurrent conflict check on the
// same resource/date blocks until this transaction finishes.  Overlap
// against the requested slots is evaluated by the caller; this method only
// narrows to the contended rows.
func (r *ResourceIntervalRepo) HeldForUpdateTx(ctx context.Context, tx *sql.Tx, kind string, resourceID uint64, date string) ([]ResourceIntervalRecord, error) {
    const q = `SELECT ` + intervalColumns + `
               FROM resource_intervals
               WHERE resource_kind = ? AND resource_id = ? AND date = ? AND status IN ('LOCKED','RESERVED')
               ORDER BY start_min
               FOR UPDATE`
    rows, err := tx.QueryContext(ctx, q, kind, resourceID, date)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []ResourceIntervalRecord
    for rows.Next() {
        rec, err := scanInterval(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, rec)
    }
    return out, rows.Err()
}

// InsertLockedTx stores one LOCKED interval for a reservation.  When an
// AVAILABLE row already occupies the (kind, resource, date, start) key it
// is reclaimed in place; otherwise a fresh row is inserted.  The caller
// must have verified there is no conflicting LOCKED/RESERVED overlap
// within the same transaction.
func (r *ResourceIntervalRepo) InsertLockedTx(ctx context.Context, tx *sql.Tx, kind string, resourceID uint64, date string, slot timeslot.Slot, reservationID uint64) error {
    const reclaim = `UPDATE resource_intervals
                     SET status = 'LOCKED', reservation_id = ?, end_min = ?, locked_at = UTC_TIMESTAMP(), released_at = NULL
                     WHERE resource_kind = ? AND resource_id = ? AND date = ? AND start_min = ? AND status = 'AVAILABLE'`
    res, err := tx.ExecContext(ctx, reclaim, reservationID, slot.End, kind, resourceID, date, slot.Start)
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err == nil && n > 0 {
        return nil
    }
    const insert = `INSERT INTO resource_intervals
                    (resource_kind, resource_id, date, start_min, end_min, status, reservation_id, locked_at)
                    VALUES (?, ?, ?, ?, ?, 'LOCKED', ?, UTC_TIMESTAMP())`
    _, err = tx.ExecContext(ctx, insert, kind, resourceID, date, slot.Start, slot.End, reservationID)
    return err
}

// PromoteTx flips all of a reservation's LOCKED intervals to RESERVED and
// returns how many rows changed.
func (r *ResourceIntervalRepo) PromoteTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (int64, error) {
    res, err := tx.ExecContext(ctx,
        `UPDATE resource_intervals SET status = 'RESERVED' WHERE reservation_id = ? AND status = 'LOCKED'`,
        reservationID)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// ReleaseTx returns all of a reservation's LOCKED/RESERVED intervals to
// AVAILABLE, clears the owner and stamps released_at.  It reports how
// many rows were released.
func (r *ResourceIntervalRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (int64, error) {
    res, err := tx.ExecContext(ctx,
        `UPDATE resource_intervals
         SET status = 'AVAILABLE', reservation_id = NULL, released_at = UTC_TIMESTAMP()
         WHERE reservation_id = ? AND status IN ('LOCKED','RESERVED')`,
        reservationID)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// ListByReservationTx returns every interval currently owned by the
// reservation ordered by (date, start).  Used to derive the aggregate
// start/end on payment confirmation and by the status advancer.
func (r *ResourceIntervalRepo) ListByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]ResourceIntervalRecord, error) {
    return r.listByReservation(ctx, tx, reservationID)
}

// ListByReservation is the non-transactional variant of
// ListByReservationTx.
func (r *ResourceIntervalRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]ResourceIntervalRecord, error) {
    return r.listByReservation(ctx, nil, reservationID)
}

func (r *ResourceIntervalRepo) listByReservation(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]ResourceIntervalRecord, error) {
    const q = `SELECT ` + intervalColumns + `
               FROM resource_intervals
               WHERE reservation_id = ? AND status IN ('LOCKED','RESERVED')
               ORDER BY date, start_min`
    var rows *sql.Rows
    var err error
    if tx != nil {
        rows, err = tx.QueryContext(ctx, q, reservationID)
    } else {
        rows, err = r.db.QueryContext(ctx, q, reservationID)
    }
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []ResourceIntervalRecord
    for rows.Next() {
        rec, err := scanInterval(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, rec)
    }
    return out, rows.Err()
}

// HeldByResource returns the LOCKED/RESERVED intervals for one resource and
// date without locking.  Availability queries use it to subtract held time
// from the published schedule.
func (r *ResourceIntervalRepo) HeldByResource(ctx context.Context, kind string, resourceID uint64, date string) ([]ResourceIntervalRecord, error) {
    const q = `SELECT ` + intervalColumns + `
               FROM resource_intervals
               WHERE resource_kind = ? AND resource_id = ? AND date = ? AND status IN ('LOCKED','RESERVED')
               ORDER BY start_min`
    rows, err := r.db.QueryContext(ctx, q, kind, resourceID, date)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []ResourceIntervalRecord
    for rows.Next() {
        rec, err := scanInterval(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, rec)
    }
    return out, rows.Err()
}
