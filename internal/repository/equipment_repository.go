package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/avelio/room-reservation/internal/model"
)

// ErrEquipmentNotFound is returned when an equipment lookup finds no
// active row.
var ErrEquipmentNotFound = errors.New("equipment not found")

// EquipmentRepo provides catalog access to the equipment table.
type EquipmentRepo struct {
    db *sql.DB
}

// NewEquipmentRepo returns a repo bound to the given database.
func NewEquipmentRepo(db *sql.DB) *EquipmentRepo { return &EquipmentRepo{db: db} }

const equipmentColumns = `id, name, kind, daily_rate_cents, is_active, created_at, updated_at`

func scanEquipment(scan func(dest ...any) error) (model.Equipment, error) {
    var eq model.Equipment
    err := scan(&eq.ID, &eq.Name, &eq.Kind, &eq.DailyRateCents, &eq.IsActive, &eq.CreatedAt, &eq.UpdatedAt)
    return eq, err
}

// Create inserts an equipment item and returns its ID.
func (r *EquipmentRepo) Create(ctx context.Context, eq *model.Equipment) error {
    const q = `INSERT INTO equipment (name, kind, daily_rate_cents, is_active) VALUES (?, ?, ?, 1)`
    out, err := r.db.ExecContext(ctx, q, eq.Name, eq.Kind, eq.DailyRateCents)
    if err != nil {
        return err
    }
    id, err := out.LastInsertId()
    if err != nil {
        return err
    }
    eq.ID = uint64(id)
    eq.IsActive = true
    return nil
}

// GetByID loads one active equipment item.
func (r *EquipmentRepo) GetByID(ctx context.Context, id uint64) (model.Equipment, error) {
    const q = `SELECT ` + equipmentColumns + ` FROM equipment WHERE id = ? AND is_active = 1`
    eq, err := scanEquipment(r.db.QueryRowContext(ctx, q, id).Scan)
    if err == sql.ErrNoRows {
        return eq, ErrEquipmentNotFound
    }
    return eq, err
}

// List returns every active equipment item ordered by name.
func (r *EquipmentRepo) List(ctx context.Context) ([]model.Equipment, error) {
    const q = `SELECT ` + equipmentColumns + ` FROM equipment WHERE is_active = 1 ORDER BY name`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Equipment
    for rows.Next() {
        eq, err := scanEquipment(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, eq)
    }
    return out, rows.Err()
}
