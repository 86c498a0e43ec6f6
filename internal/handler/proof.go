package handler

import (
    "net/http" // HTTP status codes
    "time"     // parsing transferred_at timestamps

    "github.com/avelio/room-reservation/internal/model"      // model holds domain entities
    "github.com/avelio/room-reservation/internal/repository" // repository layer
    "github.com/avelio/room-reservation/internal/workflow"   // workflow drives proof review
    "github.com/labstack/echo/v4"                            // Echo web framework
)

// ProofHandler exposes payment-proof submission and review.  Submission
// is requester-facing; review is accountant-facing.
type ProofHandler struct {
    Flow   *workflow.Service
    Proofs *repository.PaymentProofRepo
}

// NewProofHandler constructs a ProofHandler.
func NewProofHandler(flow *workflow.Service, proofs *repository.PaymentProofRepo) *ProofHandler {
    if flow == nil || proofs == nil {
        panic("nil dependency passed to NewProofHandler")
    }
    return &ProofHandler{Flow: flow, Proofs: proofs}
}

// proofView is the JSON shape of a stored proof.
type proofView struct {
    ID             uint64  `json:"id"`
    ReservationID  uint64  `json:"reservation_id"`
    PaymentType    string  `json:"payment_type"`
    FileRef        string  `json:"file_ref,omitempty"`
    TransferDigits string  `json:"transfer_digits,omitempty"`
    AmountCents    uint32  `json:"amount_cents"`
    TransferredAt  *string `json:"transferred_at,omitempty"`
    Note           string  `json:"note,omitempty"`
    Status         string  `json:"status"`
    RejectReason   string  `json:"reject_reason,omitempty"`
}

func viewProof(p model.PaymentProof) proofView {
    v := proofView{
        ID:             p.ID,
        ReservationID:  p.ReservationID,
        PaymentType:    p.PaymentType,
        FileRef:        p.FileRef,
        TransferDigits: p.TransferDigits,
        AmountCents:    p.AmountCents,
        Note:           p.Note,
        Status:         p.Status,
    }
    if p.RejectReason != nil {
        v.RejectReason = *p.RejectReason
    }
    if p.TransferredAt != nil {
        s := p.TransferredAt.Format(time.RFC3339)
        v.TransferredAt = &s
    }
    return v
}

// Submit handles POST /v1/reservations/:id/proofs.  A COUNTER proof
// carries a receipt file reference; a TRANSFER proof carries the last
// five digits of the account and the transfer timestamp.
func (h *ProofHandler) Submit(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    var body struct {
        PaymentType    string `json:"payment_type"`
        FileRef        string `json:"file_ref"`
        TransferDigits string `json:"transfer_digits"`
        AmountCents    uint32 `json:"amount_cents"`
        TransferredAt  string `json:"transferred_at"`
        Note           string `json:"note"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    in := workflow.ProofInput{
        ReservationID:  id,
        UploadedBy:     userID,
        PaymentType:    body.PaymentType,
        FileRef:        body.FileRef,
        TransferDigits: body.TransferDigits,
        AmountCents:    body.AmountCents,
        Note:           body.Note,
    }
    if body.TransferredAt != "" {
        at, err := time.Parse(time.RFC3339, body.TransferredAt)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "transferred_at must be RFC3339"})
        }
        in.TransferredAt = &at
    }
    proof, err := h.Flow.SubmitProof(c.Request().Context(), in)
    if err != nil {
        return writeWorkflowError(c, err)
    }
    return c.JSON(http.StatusCreated, viewProof(proof))
}

// ListByReservation handles GET /v1/reservations/:id/proofs.
func (h *ProofHandler) ListByReservation(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    proofs, err := h.Proofs.ListByReservation(c.Request().Context(), id)
    if err != nil {
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]proofView, 0, len(proofs))
    for _, p := range proofs {
        out = append(out, viewProof(p))
    }
    return c.JSON(http.StatusOK, echo.Map{"proofs": out})
}

// Approve handles POST /v1/proofs/:id/approve.  Accountant only.  On
// success the reservation is confirmed in the same transaction: proof
// approval and interval promotion cannot drift apart.
func (h *ProofHandler) Approve(c echo.Context) error {
    reviewerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid proof id"})
    }
    res, err := h.Flow.ApproveProof(c.Request().Context(), id, reviewerID)
    if err != nil {
        return writeWorkflowError(c, err)
    }
    return c.JSON(http.StatusOK, viewReservation(res))
}

// Reject handles POST /v1/proofs/:id/reject.  Accountant only; the
// reservation's payment axis moves to PENDING_REUPLOAD so the
// requester can submit a corrected proof before the deadline.
func (h *ProofHandler) Reject(c echo.Context) error {
    reviewerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid proof id"})
    }
    var body struct {
        Reason string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    res, err := h.Flow.RejectProof(c.Request().Context(), id, reviewerID, body.Reason)
    if err != nil {
        return writeWorkflowError(c, err)
    }
    return c.JSON(http.StatusOK, viewReservation(res))
}
