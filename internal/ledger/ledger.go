// Package ledger is the single authority over resource_intervals.  It
// answers "does this time range conflict with an existing hold" and
// performs the lock/promote/release mutations, keeping the invariant
// that no two reservations ever hold overlapping LOCKED/RESERVED
// intervals on the same resource and date.
//
// The conflict check and the lock insertion execute inside one
// transaction, with the held rows read FOR UPDATE and the whole
// sequence additionally serialised by a per-(kind, resource, date)
// mutex.  The row locks cover rewrites of existing holds; the keyed
// mutex closes the phantom window where two transactions both see an
// empty resource-day and insert overlapping ranges.
package ledger

import (
    "context"
    "database/sql"
    "fmt"
    "sort"

    "github.com/avelio/room-reservation/internal/repository"
    "github.com/avelio/room-reservation/internal/timeslot"
)

// Hold names a set of requested slots on one resource and date.  A
// booking gathers one Hold for the room plus one per equipment item;
// Lock takes them all-or-nothing.
type Hold struct {
    Kind       string // model.ResourceRoom | model.ResourceEquipment
    ResourceID uint64
    Date       string // YYYY-MM-DD
    Slots      []timeslot.Slot
}

func (h Hold) key() string {
    return fmt.Sprintf("%s:%d:%s", h.Kind, h.ResourceID, h.Date)
}

// Conflict describes one existing interval that overlaps a requested
// slot.  Requested carries the slot from the incoming booking so the
// caller can name both ranges in its error message.
type Conflict struct {
    Existing  repository.ResourceIntervalRecord
    Requested timeslot.Slot
}

// ConflictError is returned by Lock when any requested slot overlaps
// an interval held by another reservation.
type ConflictError struct {
    Conflicts []Conflict
}

func (e *ConflictError) Error() string {
    c := e.Conflicts[0]
    return fmt.Sprintf("slot %s conflicts with existing hold %s on %s %d (%s)",
        c.Requested, c.Existing.Slot(), c.Existing.ResourceKind, c.Existing.ResourceID, c.Existing.Date)
}

// Ledger wraps the interval repository with the concurrency guard.
type Ledger struct {
    intervals *repository.ResourceIntervalRepo
    guard     *keyedMutex
}

// New returns a Ledger over the given interval repository.
func New(intervals *repository.ResourceIntervalRepo) *Ledger {
    return &Ledger{intervals: intervals, guard: newKeyedMutex()}
}

// Guard serialises against other bookings touching any of the same
// (kind, resource, date) keys and returns the release function.  The
// caller holds the guard across its whole transaction, releasing only
// after commit or rollback.  Repeated keys collapse to one acquisition;
// the underlying key mutex is not reentrant.
func (l *Ledger) Guard(holds []Hold) func() {
    keys := make([]string, 0, len(holds))
    for _, h := range holds {
        keys = append(keys, h.key())
    }
    sort.Strings(keys)
    uniq := keys[:0]
    for _, key := range keys {
        if n := len(uniq); n == 0 || key != uniq[n-1] {
            uniq = append(uniq, key)
        }
    }
    return l.guard.lockAll(uniq)
}

// FindConflictsTx returns every existing LOCKED/RESERVED interval on
// the hold's resource and date that overlaps one of its slots.
// Intervals owned by excludeReservation are ignored (edit mode and
// re-entrant checks).  The matched rows are read FOR UPDATE.
func (l *Ledger) FindConflictsTx(ctx context.Context, tx *sql.Tx, h Hold, excludeReservation uint64) ([]Conflict, error) {
    held, err := l.intervals.HeldForUpdateTx(ctx, tx, h.Kind, h.ResourceID, h.Date)
    if err != nil {
        return nil, err
    }
    var out []Conflict
    for _, rec := range held {
        if excludeReservation != 0 && rec.ReservationID != nil && *rec.ReservationID == excludeReservation {
            continue
        }
        for _, s := range h.Slots {
            if rec.Slot().Overlaps(s) {
                out = append(out, Conflict{Existing: rec, Requested: s})
                break
            }
        }
    }
    return out, nil
}

// LockTx checks every hold for conflicts and, when all are clear,
// inserts LOCKED intervals for the reservation — all inside the
// caller's transaction, so the set is taken all-or-nothing.  The
// caller must already hold Guard over the same holds.
func (l *Ledger) LockTx(ctx context.Context, tx *sql.Tx, reservationID uint64, holds []Hold) error {
    var conflicts []Conflict
    for _, h := range holds {
        found, err := l.FindConflictsTx(ctx, tx, h, reservationID)
        if err != nil {
            return err
        }
        conflicts = append(conflicts, found...)
    }
    if len(conflicts) > 0 {
        return &ConflictError{Conflicts: conflicts}
    }
    for _, h := range holds {
        for _, s := range h.Slots {
            if err := l.intervals.InsertLockedTx(ctx, tx, h.Kind, h.ResourceID, h.Date, s, reservationID); err != nil {
                return err
            }
        }
    }
    return nil
}

// PromoteTx flips the reservation's LOCKED intervals to RESERVED and
// returns how many were promoted.  Zero means the holds were released
// underneath the caller (e.g. a racing cancellation) and the caller
// must treat that as a hard failure.
func (l *Ledger) PromoteTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (int64, error) {
    return l.intervals.PromoteTx(ctx, tx, reservationID)
}

// ReleaseTx returns all of the reservation's holds to AVAILABLE.
func (l *Ledger) ReleaseTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (int64, error) {
    return l.intervals.ReleaseTx(ctx, tx, reservationID)
}

// HeldByReservationTx lists the intervals a reservation currently
// owns, ordered by (date, start).
func (l *Ledger) HeldByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]repository.ResourceIntervalRecord, error) {
    return l.intervals.ListByReservationTx(ctx, tx, reservationID)
}

// HeldByReservation is the non-transactional variant used by readers
// such as the status advancer.
func (l *Ledger) HeldByReservation(ctx context.Context, reservationID uint64) ([]repository.ResourceIntervalRecord, error) {
    return l.intervals.ListByReservation(ctx, reservationID)
}
