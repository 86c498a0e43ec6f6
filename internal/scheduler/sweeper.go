package scheduler

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/avelio/room-reservation/internal/workflow"
)

// SweepOverdue force-cancels reservations whose payment deadline date
// has passed.  Each reservation is cancelled in its own transaction
// (workflow.CancelOverdue re-checks state under the row lock, so a
// concurrent payment or a second sweep of the same day is a no-op) and
// a notification failure for one reservation never blocks the rest.
// When Redis is available a last-run key short-circuits repeat runs
// within the same day; the key is released again when the listing or
// any cancellation fails, so the next tick retries instead of waiting
// for tomorrow.
func (r *Reconciler) SweepOverdue(ctx context.Context) error {
    today := r.Clock().Format("2006-01-02")
    guardKey := "sweeper:ran:" + today
    if r.rdb != nil {
        ok, err := r.rdb.SetNX(ctx, guardKey, 1, 36*time.Hour).Result()
        if err == nil && !ok {
            return nil
        }
        // Redis errors degrade to running the sweep; it is idempotent.
    }

    overdue, err := r.reservations.ListOverdue(ctx, today)
    if err != nil {
        r.releaseSweepGuard(ctx, guardKey)
        return err
    }
    failed := 0
    for _, res := range overdue {
        cancelled, err := r.flow.CancelOverdue(ctx, res.ID)
        if err != nil {
            var ise *workflow.InvalidStateError
            if errors.As(err, &ise) {
                // Paid or already cancelled since the listing; skip.
                continue
            }
            log.Printf("sweeper: cancel reservation %d failed: %v", res.ID, err)
            failed++
            continue
        }
        if err := r.flow.NotifyCancelled(cancelled); err != nil {
            log.Printf("sweeper: notify reservation %d failed: %v", res.ID, err)
        }
    }
    if failed > 0 {
        r.releaseSweepGuard(ctx, guardKey)
    }
    if len(overdue) > 0 {
        log.Printf("sweeper: processed %d overdue reservations (%d failed)", len(overdue), failed)
    }
    return nil
}

// releaseSweepGuard drops the daily run key so a later tick can retry
// a sweep that did not fully succeed.
func (r *Reconciler) releaseSweepGuard(ctx context.Context, key string) {
    if r.rdb == nil {
        return
    }
    if err := r.rdb.Del(ctx, key).Err(); err != nil {
        log.Printf("sweeper: release run guard %s: %v", key, err)
    }
}
