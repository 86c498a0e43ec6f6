package workflow

import (
    "context"
    "database/sql"
    "fmt"
    "strings"
    "time"

    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/notify"
)

// ProofInput carries one piece of payment evidence: a counter receipt
// (file reference) or transfer details.
type ProofInput struct {
    ReservationID uint64
    UploadedBy    uint64
    PaymentType   string // COUNTER | TRANSFER
    FileRef       string
    TransferDigits string
    AmountCents   uint32
    TransferredAt *time.Time
    Note          string
}

// SubmitProof records payment evidence and moves the reservation's
// payment axis to PENDING_VERIFICATION.  Accepted only while the
// reservation is awaiting payment and the axis is UNPAID or
// PENDING_REUPLOAD (a new proof superseding a rejected one).
func (s *Service) SubmitProof(ctx context.Context, in ProofInput) (model.PaymentProof, error) {
    var zero model.PaymentProof
    if in.PaymentType != model.PayMethodCounter && in.PaymentType != model.PayMethodTransfer {
        return zero, &ValidationError{Field: "payment_type", Msg: "must be COUNTER or TRANSFER"}
    }
    if in.AmountCents == 0 {
        return zero, &ValidationError{Field: "amount_cents", Msg: "must be positive"}
    }
    if in.PaymentType == model.PayMethodTransfer {
        if len(in.TransferDigits) != 5 {
            return zero, &ValidationError{Field: "transfer_digits", Msg: "last 5 digits of the account are required"}
        }
        if in.TransferredAt == nil {
            return zero, &ValidationError{Field: "transferred_at", Msg: "transfer time is required"}
        }
    } else if strings.TrimSpace(in.FileRef) == "" {
        return zero, &ValidationError{Field: "file_ref", Msg: "receipt file is required"}
    }

    proof := model.PaymentProof{
        ReservationID:  in.ReservationID,
        PaymentType:    in.PaymentType,
        FileRef:        in.FileRef,
        TransferDigits: in.TransferDigits,
        AmountCents:    in.AmountCents,
        TransferredAt:  in.TransferredAt,
        Note:           in.Note,
        UploadedBy:     in.UploadedBy,
    }
    var res model.Reservation
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        var err error
        res, err = s.reservations.GetForUpdateTx(ctx, tx, in.ReservationID)
        if err != nil {
            return mapNoRows(err)
        }
        if res.RequesterID != in.UploadedBy {
            return ErrForbidden
        }
        if res.ApprovalState != model.ApprovalPendingPayment ||
            (res.PaymentState != model.PaymentUnpaid && res.PaymentState != model.PaymentPendingReupload) {
            return &InvalidStateError{Op: "submit proof", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        if err := s.proofs.CreateTx(ctx, tx, &proof); err != nil {
            return err
        }
        return s.reservations.SetPaymentStateTx(ctx, tx, in.ReservationID, model.PaymentPendingVerification)
    })
    if err != nil {
        return zero, err
    }

    s.audit.Record(ctx, in.UploadedBy, "proof.submit",
        fmt.Sprintf("proof %d for reservation %d (%s)", proof.ID, in.ReservationID, in.PaymentType))
    s.send(s.event(notify.KindProofSubmitted, 0, res,
        "Payment proof awaiting verification",
        fmt.Sprintf("Reservation %q (dept %s) submitted a %s payment proof of %d cents.",
            res.Name, res.DepartmentCode, strings.ToLower(in.PaymentType), in.AmountCents)))
    return proof, nil
}

// ApproveProof accepts the most recent pending proof and confirms the
// reservation's payment in the same transaction.
func (s *Service) ApproveProof(ctx context.Context, proofID, reviewerID uint64) (model.Reservation, error) {
    var res model.Reservation
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        proof, err := s.proofs.GetForUpdateTx(ctx, tx, proofID)
        if err != nil {
            return mapNoRows(err)
        }
        if proof.Status != model.ProofPendingReview {
            return &InvalidStateError{Op: "approve proof", ApprovalState: proof.Status}
        }
        res, err = s.reservations.GetForUpdateTx(ctx, tx, proof.ReservationID)
        if err != nil {
            return mapNoRows(err)
        }
        latest, err := s.proofs.LatestPendingTx(ctx, tx, proof.ReservationID)
        if err != nil {
            return err
        }
        if latest.ID != proofID {
            // A newer upload supersedes this one.
            return &InvalidStateError{Op: "approve proof", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        if err := s.proofs.MarkApprovedTx(ctx, tx, proofID, reviewerID); err != nil {
            return err
        }
        return s.confirmPaymentTx(ctx, tx, &res)
    })
    if err != nil {
        return res, err
    }

    s.audit.Record(ctx, reviewerID, "proof.approve", fmt.Sprintf("proof %d reservation %d", proofID, res.ID))
    s.notifyConfirmed(ctx, res)
    return res, nil
}

// RejectProof declines a pending proof with a reason; the reservation
// moves to PENDING_REUPLOAD so the requester can submit corrected
// evidence before the deadline.
func (s *Service) RejectProof(ctx context.Context, proofID, reviewerID uint64, reason string) (model.Reservation, error) {
    if strings.TrimSpace(reason) == "" {
        return model.Reservation{}, &ValidationError{Field: "reason", Msg: "must not be empty"}
    }
    var res model.Reservation
    err := s.inTx(ctx, func(tx *sql.Tx) error {
        proof, err := s.proofs.GetForUpdateTx(ctx, tx, proofID)
        if err != nil {
            return mapNoRows(err)
        }
        if proof.Status != model.ProofPendingReview {
            return &InvalidStateError{Op: "reject proof", ApprovalState: proof.Status}
        }
        res, err = s.reservations.GetForUpdateTx(ctx, tx, proof.ReservationID)
        if err != nil {
            return mapNoRows(err)
        }
        if res.PaymentState != model.PaymentPendingVerification {
            return &InvalidStateError{Op: "reject proof", ApprovalState: res.ApprovalState, PaymentState: res.PaymentState}
        }
        if err := s.proofs.MarkRejectedTx(ctx, tx, proofID, reviewerID, reason); err != nil {
            return err
        }
        if err := s.reservations.SetPaymentStateTx(ctx, tx, res.ID, model.PaymentPendingReupload); err != nil {
            return err
        }
        res.PaymentState = model.PaymentPendingReupload
        return nil
    })
    if err != nil {
        return res, err
    }

    s.audit.Record(ctx, reviewerID, "proof.reject", fmt.Sprintf("proof %d reservation %d: %s", proofID, res.ID, reason))
    deadline := "your payment deadline"
    if res.PaymentDeadline != nil {
        deadline = res.PaymentDeadline.Format("2006-01-02")
    }
    s.send(s.event(notify.KindProofRejected, res.RequesterID, res,
        "Payment proof rejected",
        fmt.Sprintf("Your payment proof for %q was rejected: %s. Upload a corrected proof before %s.",
            res.Name, reason, deadline)))
    return res, nil
}
