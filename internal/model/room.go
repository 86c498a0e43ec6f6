package model

import "time"

// Room is a bookable space in the catalog.  Its open/close times and
// slot granularity define the sellable base schedule: the published
// slots for any date are the SlotMinutes-sized windows between
// OpenMin and CloseMin.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name, unique per deployment.
//  OwnerID         – user responsible for the room; notified on new
//                    reservation requests.
//  HourlyRateCents – base room price per hour.
//  OpenMin/CloseMin – daily opening window, minutes since midnight.
//  SlotMinutes     – published booking granularity (e.g. 30, 60).
//  IsActive        – inactive rooms accept no new reservations.
type Room struct {
    ID              uint64
    Name            string
    OwnerID         uint64
    HourlyRateCents uint32
    OpenMin         int
    CloseMin        int
    SlotMinutes     int
    IsActive        bool
    CreatedAt       time.Time
    UpdatedAt       time.Time
}
