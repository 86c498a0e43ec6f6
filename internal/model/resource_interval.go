package model

import "time"

// Resource kinds schedulable through the ledger.  Rooms and equipment
// (including booths) share one interval table and one conflict check.
const (
    ResourceRoom      = "ROOM"
    ResourceEquipment = "EQUIPMENT"
)

// Interval statuses.  AVAILABLE rows are reclaimable; LOCKED rows are
// held by a reservation pending approval; RESERVED rows belong to an
// approved reservation.  Rows are never hard-deleted: a release flips
// the row back to AVAILABLE and stamps released_at as the audit
// marker.
const (
    IntervalAvailable = "AVAILABLE"
    IntervalLocked    = "LOCKED"
    IntervalReserved  = "RESERVED"
)

// ResourceInterval is one bookable unit of a resource on a date.
// The invariant enforced by the ledger: for a given (kind, resource,
// date), no two rows with status LOCKED or RESERVED may overlap in
// [StartMin, EndMin) unless they share the same ReservationID.
//
// Fields:
//  ID            – primary key identifier.
//  ResourceKind  – ROOM or EQUIPMENT.
//  ResourceID    – id of the room or equipment item.
//  Date          – calendar date (YYYY-MM-DD) the interval falls on.
//  StartMin      – interval start, minutes since midnight.
//  EndMin        – interval end, minutes since midnight (exclusive).
//  Status        – AVAILABLE, LOCKED or RESERVED.
//  ReservationID – owning reservation when LOCKED/RESERVED.
//  LockedAt      – when the current hold was taken.
//  ReleasedAt    – when the row was last released.
type ResourceInterval struct {
    ID            uint64
    ResourceKind  string
    ResourceID    uint64
    Date          string
    StartMin      int
    EndMin        int
    Status        string
    ReservationID *uint64
    LockedAt      *time.Time
    ReleasedAt    *time.Time
    CreatedAt     time.Time
    UpdatedAt     time.Time
}
