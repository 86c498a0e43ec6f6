package repository

import (
    "context"
    "database/sql"
    "log"
)

// AuditRepo appends workflow actions to the audit_log table.  The log
// is a side channel: a failed write is logged and swallowed so it can
// never abort the state transition that produced it.
type AuditRepo struct {
    db *sql.DB
}

// NewAuditRepo returns a repo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record appends one entry.  actorID 0 means the system (scheduler)
// acted.
func (r *AuditRepo) Record(ctx context.Context, actorID uint64, action, details string) {
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO audit_log (actor_id, action, details) VALUES (?, ?, ?)`,
        actorID, action, details)
    if err != nil {
        log.Printf("audit: record %s failed: %v", action, err)
    }
}
