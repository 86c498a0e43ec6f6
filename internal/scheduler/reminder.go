package scheduler

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/avelio/room-reservation/internal/notify"
)

// Reminder day offsets before the payment deadline.
var reminderOffsets = []int{3, 1}

// RemindDeadlines notifies requesters whose payment deadline is
// exactly 3 or 1 calendar days away.  At most one reminder goes out
// per reservation per calendar day: the last-sent timestamp stored on
// the reservation dedups re-runs within the same day and keeps the
// same offset from firing twice.
func (r *Reconciler) RemindDeadlines(ctx context.Context) error {
    now := r.Clock()
    for _, offset := range reminderOffsets {
        date := now.AddDate(0, 0, offset).Format("2006-01-02")
        due, err := r.reservations.ListByDeadlineDate(ctx, date)
        if err != nil {
            return err
        }
        for _, res := range due {
            if res.LastReminderAt != nil && sameDay(*res.LastReminderAt, now) {
                continue
            }
            ev := notify.Event{
                ID:            uuid.NewString(),
                Kind:          notify.KindPaymentReminder,
                RecipientID:   res.RequesterID,
                ReservationID: res.ID,
                Reference:     res.Reference,
                Subject:       fmt.Sprintf("Payment due in %d day(s)", offset),
                Body: fmt.Sprintf("Reservation %q must be paid by %s or it will be cancelled automatically.",
                    res.Name, date),
                EmittedAt: now.Format(time.RFC3339),
            }
            if err := r.send(ev); err != nil {
                log.Printf("reminder: notify reservation %d failed: %v", res.ID, err)
                continue
            }
            if err := r.reservations.MarkReminderSent(ctx, res.ID, offset); err != nil {
                log.Printf("reminder: mark reservation %d failed: %v", res.ID, err)
            }
        }
    }
    return nil
}
