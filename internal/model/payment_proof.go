package model

import "time"

// Proof review statuses.  A rejected proof is never deleted; the
// requester uploads a new one which supersedes it.
const (
    ProofPendingReview = "PENDING_REVIEW"
    ProofApproved      = "APPROVED"
    ProofRejected      = "REJECTED"
)

// PaymentProof records evidence that a reservation was paid, either a
// counter receipt or transfer details.  Approving the most recent
// pending proof confirms the reservation; rejecting it flips the
// reservation's payment state to PENDING_REUPLOAD.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation the evidence belongs to.
//  PaymentType   – COUNTER or TRANSFER.
//  FileRef       – reference to the uploaded receipt image/document.
//  TransferDigits – last five digits of the transferring account,
//                   TRANSFER proofs only.
//  AmountCents   – amount the requester claims to have paid.
//  TransferredAt – when the transfer was made, TRANSFER proofs only.
//  Note          – free-form remark from the requester.
//  Status        – PENDING_REVIEW, APPROVED or REJECTED.
//  UploadedAt/By, ReviewedAt/By, RejectReason – review bookkeeping.
type PaymentProof struct {
    ID             uint64
    ReservationID  uint64
    PaymentType    string
    FileRef        string
    TransferDigits string
    AmountCents    uint32
    TransferredAt  *time.Time
    Note           string
    Status         string
    UploadedAt     time.Time
    UploadedBy     uint64
    ReviewedAt     *time.Time
    ReviewedBy     *uint64
    RejectReason   *string
}
