package workflow

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/notify"
)

var proofCols = []string{
    "id", "reservation_id", "payment_type", "file_ref", "transfer_digits", "amount_cents",
    "transferred_at", "note", "status", "uploaded_at", "uploaded_by", "reviewed_at", "reviewed_by", "reject_reason",
}

func proofRow(id, reservationID int64, status string) *sqlmock.Rows {
    return sqlmock.NewRows(proofCols).
        AddRow(id, reservationID, "TRANSFER", "", "12345", 100000, testClock, "", status, testClock, 5, nil, nil, nil)
}

func TestSubmitProofValidation(t *testing.T) {
    svc, _, _ := newTestService(t)
    ctx := context.Background()
    at := testClock

    cases := []struct {
        field string
        in    ProofInput
    }{
        {"payment_type", ProofInput{ReservationID: 41, UploadedBy: 5, PaymentType: "CHEQUE", AmountCents: 100}},
        {"amount_cents", ProofInput{ReservationID: 41, UploadedBy: 5, PaymentType: "COUNTER", FileRef: "r.png"}},
        {"transfer_digits", ProofInput{ReservationID: 41, UploadedBy: 5, PaymentType: "TRANSFER", AmountCents: 100, TransferDigits: "123", TransferredAt: &at}},
        {"transferred_at", ProofInput{ReservationID: 41, UploadedBy: 5, PaymentType: "TRANSFER", AmountCents: 100, TransferDigits: "12345"}},
        {"file_ref", ProofInput{ReservationID: 41, UploadedBy: 5, PaymentType: "COUNTER", AmountCents: 100}},
    }
    for _, c := range cases {
        _, err := svc.SubmitProof(ctx, c.in)
        ve, ok := err.(*ValidationError)
        require.True(t, ok, "field %s: got %v", c.field, err)
        assert.Equal(t, c.field, ve.Field)
    }
}

func TestSubmitProofMovesToPendingVerification(t *testing.T) {
    svc, mock, sink := newTestService(t)
    ctx := context.Background()

    deadline := testClock.AddDate(0, 0, 3)
    awaiting := model.Reservation{
        ID: 41, RequesterID: 5, ApprovalState: model.ApprovalPendingPayment, PaymentState: model.PaymentUnpaid,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "TRANSFER",
        DepartmentCode: "FIN-02", TotalAmountCents: 100000, PaymentDeadline: &deadline,
    }
    at := testClock
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).WillReturnRows(reservationRow(awaiting))
    mock.ExpectExec("INSERT INTO payment_proofs").
        WillReturnResult(sqlmock.NewResult(11, 1))
    mock.ExpectExec(`UPDATE reservations SET payment_state = \?`).
        WithArgs(model.PaymentPendingVerification, 41).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()
    mock.ExpectExec("INSERT INTO audit_log").
        WillReturnResult(sqlmock.NewResult(1, 1))

    proof, err := svc.SubmitProof(ctx, ProofInput{
        ReservationID: 41, UploadedBy: 5, PaymentType: "TRANSFER",
        TransferDigits: "12345", AmountCents: 100000, TransferredAt: &at,
    })
    require.NoError(t, err)
    assert.Equal(t, uint64(11), proof.ID)
    assert.Equal(t, model.ProofPendingReview, proof.Status)

    // finance inbox, not a single user
    require.Len(t, sink.events, 1)
    assert.Equal(t, notify.KindProofSubmitted, sink.events[0].Kind)
    assert.Equal(t, uint64(0), sink.events[0].RecipientID)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitProofOnlyByRequester(t *testing.T) {
    svc, mock, _ := newTestService(t)
    ctx := context.Background()

    awaiting := model.Reservation{
        ID: 41, RequesterID: 5, ApprovalState: model.ApprovalPendingPayment, PaymentState: model.PaymentUnpaid,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "COUNTER",
    }
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).WillReturnRows(reservationRow(awaiting))
    mock.ExpectRollback()

    _, err := svc.SubmitProof(ctx, ProofInput{
        ReservationID: 41, UploadedBy: 8, PaymentType: "COUNTER", FileRef: "r.png", AmountCents: 100,
    })
    assert.ErrorIs(t, err, ErrForbidden)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveProofConfirmsReservation(t *testing.T) {
    svc, mock, sink := newTestService(t)
    ctx := context.Background()

    verifying := model.Reservation{
        ID: 41, RequesterID: 5, Name: "Quarterly review",
        ApprovalState: model.ApprovalPendingPayment, PaymentState: model.PaymentPendingVerification,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "TRANSFER", TotalAmountCents: 100000,
    }
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM payment_proofs WHERE id = \? FOR UPDATE`).
        WithArgs(11).WillReturnRows(proofRow(11, 41, model.ProofPendingReview))
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).WillReturnRows(reservationRow(verifying))
    mock.ExpectQuery(`(?s)FROM payment_proofs.+ORDER BY uploaded_at DESC`).
        WithArgs(41).WillReturnRows(proofRow(11, 41, model.ProofPendingReview))
    mock.ExpectExec("UPDATE payment_proofs").
        WithArgs(9, 11).WillReturnResult(sqlmock.NewResult(0, 1))
    // two intervals on the same day; aggregate span is min start to max end
    mock.ExpectQuery(`(?s)FROM resource_intervals.+ORDER BY date, start_min`).
        WithArgs(41).
        WillReturnRows(sqlmock.NewRows(intervalCols).
            AddRow(1, "ROOM", 7, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 540, 660, "RESERVED", 41, testClock, nil).
            AddRow(2, "ROOM", 7, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 780, 840, "RESERVED", 41, testClock, nil))
    mock.ExpectExec(`UPDATE reservations`).
        WithArgs("2025-06-10 09:00:00", "2025-06-10 14:00:00", 41).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()
    mock.ExpectExec("INSERT INTO audit_log").
        WillReturnResult(sqlmock.NewResult(1, 1))
    mock.ExpectExec("INSERT INTO audit_log").
        WillReturnResult(sqlmock.NewResult(1, 1))

    res, err := svc.ApproveProof(ctx, 11, 9)
    require.NoError(t, err)
    assert.Equal(t, model.ApprovalConfirmed, res.ApprovalState)
    assert.Equal(t, model.PaymentPaid, res.PaymentState)
    require.NotNil(t, res.StartsAt)
    assert.Equal(t, "2025-06-10T09:00:00Z", res.StartsAt.Format(time.RFC3339))
    assert.Equal(t, "2025-06-10T14:00:00Z", res.EndsAt.Format(time.RFC3339))
    assert.Equal(t, []string{notify.KindReservationConfirmed}, sink.kinds())
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveProofSupersededByNewerUpload(t *testing.T) {
    svc, mock, _ := newTestService(t)
    ctx := context.Background()

    verifying := model.Reservation{
        ID: 41, RequesterID: 5, ApprovalState: model.ApprovalPendingPayment, PaymentState: model.PaymentPendingVerification,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "TRANSFER",
    }
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM payment_proofs WHERE id = \? FOR UPDATE`).
        WithArgs(11).WillReturnRows(proofRow(11, 41, model.ProofPendingReview))
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).WillReturnRows(reservationRow(verifying))
    mock.ExpectQuery(`(?s)FROM payment_proofs.+ORDER BY uploaded_at DESC`).
        WithArgs(41).WillReturnRows(proofRow(12, 41, model.ProofPendingReview))
    mock.ExpectRollback()

    _, err := svc.ApproveProof(ctx, 11, 9)
    _, ok := err.(*InvalidStateError)
    require.True(t, ok, "got %v", err)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveProofLatestLookupFailureIsNotStateError(t *testing.T) {
    svc, mock, _ := newTestService(t)
    ctx := context.Background()

    verifying := model.Reservation{
        ID: 41, RequesterID: 5, ApprovalState: model.ApprovalPendingPayment, PaymentState: model.PaymentPendingVerification,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "TRANSFER",
    }
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM payment_proofs WHERE id = \? FOR UPDATE`).
        WithArgs(11).WillReturnRows(proofRow(11, 41, model.ProofPendingReview))
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).WillReturnRows(reservationRow(verifying))
    mock.ExpectQuery(`(?s)FROM payment_proofs.+ORDER BY uploaded_at DESC`).
        WithArgs(41).WillReturnError(assert.AnError)
    mock.ExpectRollback()

    _, err := svc.ApproveProof(ctx, 11, 9)
    // a failed lookup is a database error, not a superseded proof
    require.ErrorIs(t, err, assert.AnError)
    var ise *InvalidStateError
    assert.False(t, errors.As(err, &ise))
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectProofRequestsReupload(t *testing.T) {
    svc, mock, sink := newTestService(t)
    ctx := context.Background()

    _, err := svc.RejectProof(ctx, 11, 9, "")
    _, ok := err.(*ValidationError)
    require.True(t, ok)

    deadline := testClock.AddDate(0, 0, 2)
    verifying := model.Reservation{
        ID: 41, RequesterID: 5, Name: "Quarterly review",
        ApprovalState: model.ApprovalPendingPayment, PaymentState: model.PaymentPendingVerification,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "TRANSFER", PaymentDeadline: &deadline,
    }
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM payment_proofs WHERE id = \? FOR UPDATE`).
        WithArgs(11).WillReturnRows(proofRow(11, 41, model.ProofPendingReview))
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).WillReturnRows(reservationRow(verifying))
    mock.ExpectExec("UPDATE payment_proofs").
        WithArgs(9, "amount does not match the invoice", 11).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(`UPDATE reservations SET payment_state = \?`).
        WithArgs(model.PaymentPendingReupload, 41).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()
    mock.ExpectExec("INSERT INTO audit_log").
        WillReturnResult(sqlmock.NewResult(1, 1))

    res, err := svc.RejectProof(ctx, 11, 9, "amount does not match the invoice")
    require.NoError(t, err)
    assert.Equal(t, model.PaymentPendingReupload, res.PaymentState)
    require.Len(t, sink.events, 1)
    assert.Equal(t, notify.KindProofRejected, sink.events[0].Kind)
    assert.Contains(t, sink.events[0].Body, deadline.Format("2006-01-02"))
    assert.NoError(t, mock.ExpectationsWereMet())
}
