package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/timeslot"
)

// ErrRoomNotFound is returned when a room lookup finds no active row.
var ErrRoomNotFound = errors.New("room not found")

// RoomRepo provides catalog access to the rooms table and derives each
// room's published sellable schedule from its open hours and slot
// granularity.
type RoomRepo struct {
    db *sql.DB
}

// NewRoomRepo returns a repo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `id, name, owner_id, hourly_rate_cents, open_min, close_min, slot_minutes, is_active, created_at, updated_at`

func scanRoom(scan func(dest ...any) error) (model.Room, error) {
    var rm model.Room
    err := scan(&rm.ID, &rm.Name, &rm.OwnerID, &rm.HourlyRateCents, &rm.OpenMin, &rm.CloseMin,
        &rm.SlotMinutes, &rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt)
    return rm, err
}

// Create inserts a room and returns its ID.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
    const q = `INSERT INTO rooms (name, owner_id, hourly_rate_cents, open_min, close_min, slot_minutes, is_active)
               VALUES (?, ?, ?, ?, ?, ?, 1)`
    out, err := r.db.ExecContext(ctx, q, rm.Name, rm.OwnerID, rm.HourlyRateCents, rm.OpenMin, rm.CloseMin, rm.SlotMinutes)
    if err != nil {
        return err
    }
    id, err := out.LastInsertId()
    if err != nil {
        return err
    }
    rm.ID = uint64(id)
    rm.IsActive = true
    return nil
}

// GetByID loads one active room.  Returns ErrRoomNotFound when the row
// is absent or inactive.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (model.Room, error) {
    const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? AND is_active = 1`
    rm, err := scanRoom(r.db.QueryRowContext(ctx, q, id).Scan)
    if err == sql.ErrNoRows {
        return rm, ErrRoomNotFound
    }
    return rm, err
}

// List returns every active room ordered by name.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
    const q = `SELECT ` + roomColumns + ` FROM rooms WHERE is_active = 1 ORDER BY name`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Room
    for rows.Next() {
        rm, err := scanRoom(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, rm)
    }
    return out, rows.Err()
}

// PublishedSlots derives the sellable base schedule for a room: the
// granularity-sized windows between its open and close times.  A
// trailing partial window is not published.
func PublishedSlots(rm model.Room) []timeslot.Slot {
    if rm.SlotMinutes <= 0 || rm.CloseMin <= rm.OpenMin {
        return nil
    }
    var out []timeslot.Slot
    for start := rm.OpenMin; start+rm.SlotMinutes <= rm.CloseMin; start += rm.SlotMinutes {
        out = append(out, timeslot.Slot{Start: start, End: start + rm.SlotMinutes})
    }
    return out
}
