package scheduler

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/notify"
)

// AdvanceStatuses recomputes the display status of every active
// confirmed reservation against the current time.  Entering PREPARING
// fires the room-automation hook (a room.prepare event) exactly once,
// because the transition is driven by the stored status changing.
func (r *Reconciler) AdvanceStatuses(ctx context.Context) error {
    now := r.Clock()
    active, err := r.reservations.ListActiveConfirmed(ctx)
    if err != nil {
        return err
    }
    for _, res := range active {
        held, err := r.intervals.ListByReservation(ctx, res.ID)
        if err != nil {
            log.Printf("advancer: load intervals for reservation %d failed: %v", res.ID, err)
            continue
        }
        next := ComputeDisplayStatus(now, held, r.PrepareLeadMin)
        if next == res.DisplayStatus {
            continue
        }
        if err := r.reservations.UpdateDisplayStatus(ctx, res.ID, next); err != nil {
            log.Printf("advancer: update reservation %d to %s failed: %v", res.ID, next, err)
            continue
        }
        if next == model.DisplayPreparing {
            if err := r.send(notify.Event{
                ID:            uuid.NewString(),
                Kind:          notify.KindRoomPrepare,
                RecipientID:   0,
                ReservationID: res.ID,
                Reference:     res.Reference,
                Subject:       "Prepare room",
                Body:          fmt.Sprintf("Reservation %q starts soon; room %d should be prepared.", res.Name, res.RoomID),
                EmittedAt:     now.Format(time.RFC3339),
            }); err != nil {
                log.Printf("advancer: prepare hook for reservation %d failed: %v", res.ID, err)
            }
        }
    }
    return nil
}
