package model

import "time"

// Equipment kinds.  ITEM covers movable gear (projectors, consoles);
// BOOTH covers fixed interpreter/exhibition booths.  Both are
// schedulable resources in the ledger under kind EQUIPMENT.
const (
    EquipmentItem  = "ITEM"
    EquipmentBooth = "BOOTH"
)

// Equipment is a schedulable item attached to reservations alongside
// the room.  Pricing is per day regardless of how many intervals of
// that day are held.
type Equipment struct {
    ID             uint64
    Name           string
    Kind           string
    DailyRateCents uint32
    IsActive       bool
    CreatedAt      time.Time
    UpdatedAt      time.Time
}
