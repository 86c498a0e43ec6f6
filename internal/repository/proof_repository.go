package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/avelio/room-reservation/internal/model"
)

// PaymentProofRepo provides data access to the payment_proofs table.
// A reservation accumulates proofs over time; only the most recent
// PENDING_REVIEW proof is actionable.  Rejected proofs are kept as an
// audit trail and superseded by the next upload.
type PaymentProofRepo struct {
    db *sql.DB
}

// NewPaymentProofRepo returns a repo bound to the given database.
func NewPaymentProofRepo(db *sql.DB) *PaymentProofRepo { return &PaymentProofRepo{db: db} }

const proofColumns = `id, reservation_id, payment_type, file_ref, transfer_digits, amount_cents,
    transferred_at, note, status, uploaded_at, uploaded_by, reviewed_at, reviewed_by, reject_reason`

func scanProof(scan func(dest ...any) error) (model.PaymentProof, error) {
    var p model.PaymentProof
    var transferredAt, reviewedAt sql.NullTime
    var reviewedBy sql.NullInt64
    var rejectReason sql.NullString
    err := scan(&p.ID, &p.ReservationID, &p.PaymentType, &p.FileRef, &p.TransferDigits, &p.AmountCents,
        &transferredAt, &p.Note, &p.Status, &p.UploadedAt, &p.UploadedBy, &reviewedAt, &reviewedBy, &rejectReason)
    if err != nil {
        return p, err
    }
    if transferredAt.Valid {
        t := transferredAt.Time
        p.TransferredAt = &t
    }
    if reviewedAt.Valid {
        t := reviewedAt.Time
        p.ReviewedAt = &t
    }
    if reviewedBy.Valid {
        v := uint64(reviewedBy.Int64)
        p.ReviewedBy = &v
    }
    if rejectReason.Valid {
        s := rejectReason.String
        p.RejectReason = &s
    }
    return p, nil
}

// CreateTx inserts a new proof in PENDING_REVIEW and populates its
// generated ID.
func (r *PaymentProofRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PaymentProof) error {
    const q = `INSERT INTO payment_proofs
        (reservation_id, payment_type, file_ref, transfer_digits, amount_cents, transferred_at, note, status, uploaded_at, uploaded_by)
        VALUES (?, ?, ?, ?, ?, ?, ?, 'PENDING_REVIEW', UTC_TIMESTAMP(), ?)`
    var transferredAt any
    if p.TransferredAt != nil {
        transferredAt = p.TransferredAt.UTC().Format("2006-01-02 15:04:05")
    }
    out, err := tx.ExecContext(ctx, q, p.ReservationID, p.PaymentType, p.FileRef, p.TransferDigits,
        p.AmountCents, transferredAt, p.Note, p.UploadedBy)
    if err != nil {
        return err
    }
    id, err := out.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    p.Status = model.ProofPendingReview
    p.UploadedAt = time.Now().UTC()
    return nil
}

// GetForUpdateTx loads one proof under a row lock for review.
func (r *PaymentProofRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.PaymentProof, error) {
    const q = `SELECT ` + proofColumns + ` FROM payment_proofs WHERE id = ? FOR UPDATE`
    return scanProof(tx.QueryRowContext(ctx, q, id).Scan)
}

// GetByID loads one proof without locking.
func (r *PaymentProofRepo) GetByID(ctx context.Context, id uint64) (model.PaymentProof, error) {
    const q = `SELECT ` + proofColumns + ` FROM payment_proofs WHERE id = ?`
    return scanProof(r.db.QueryRowContext(ctx, q, id).Scan)
}

// LatestPendingTx returns the most recent PENDING_REVIEW proof for a
// reservation, or sql.ErrNoRows when there is none.
func (r *PaymentProofRepo) LatestPendingTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (model.PaymentProof, error) {
    const q = `SELECT ` + proofColumns + `
               FROM payment_proofs
               WHERE reservation_id = ? AND status = 'PENDING_REVIEW'
               ORDER BY uploaded_at DESC, id DESC LIMIT 1`
    return scanProof(tx.QueryRowContext(ctx, q, reservationID).Scan)
}

// MarkApprovedTx flips a proof to APPROVED and stamps the reviewer.
func (r *PaymentProofRepo) MarkApprovedTx(ctx context.Context, tx *sql.Tx, id, reviewerID uint64) error {
    const q = `UPDATE payment_proofs
               SET status = 'APPROVED', reviewed_at = UTC_TIMESTAMP(), reviewed_by = ?
               WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, reviewerID, id)
    return err
}

// MarkRejectedTx flips a proof to REJECTED with the reviewer's reason.
func (r *PaymentProofRepo) MarkRejectedTx(ctx context.Context, tx *sql.Tx, id, reviewerID uint64, reason string) error {
    const q = `UPDATE payment_proofs
               SET status = 'REJECTED', reviewed_at = UTC_TIMESTAMP(), reviewed_by = ?, reject_reason = ?
               WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, reviewerID, reason, id)
    return err
}

// ListByReservation returns all proofs for a reservation, newest first.
func (r *PaymentProofRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.PaymentProof, error) {
    const q = `SELECT ` + proofColumns + `
               FROM payment_proofs WHERE reservation_id = ? ORDER BY uploaded_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.PaymentProof
    for rows.Next() {
        p, err := scanProof(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}
