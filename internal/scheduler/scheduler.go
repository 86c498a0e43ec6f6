// Package scheduler runs the reconciliation workers that keep
// reservation state in sync with wall-clock time: the display-status
// advancer, the overdue-payment sweeper and the payment-deadline
// reminder.  Each tick is exception-isolated per reservation — one bad
// row or one failed notification never blocks the rest — and every
// task is idempotent, so re-running a tick is always safe.
package scheduler

import (
    "context"
    "log"
    "time"

    "github.com/go-co-op/gocron/v2"
    "github.com/redis/go-redis/v9"

    "github.com/avelio/room-reservation/internal/notify"
    "github.com/avelio/room-reservation/internal/repository"
    "github.com/avelio/room-reservation/internal/workflow"
)

// Reconciler owns the three periodic tasks.  Clock is injectable for
// tests; Redis may be nil, in which case the sweeper's last-run guard
// degrades to relying on per-reservation idempotence alone.
type Reconciler struct {
    reservations *repository.ReservationRepo
    intervals    *repository.ResourceIntervalRepo
    flow         *workflow.Service
    sink         notify.Sink
    audit        *repository.AuditRepo
    rdb          *redis.Client

    Clock          func() time.Time
    PrepareLeadMin int
    AdvanceEvery   time.Duration
    SweepEvery     time.Duration
}

// New wires a Reconciler.
func New(reservations *repository.ReservationRepo, intervals *repository.ResourceIntervalRepo,
    flow *workflow.Service, sink notify.Sink, audit *repository.AuditRepo, rdb *redis.Client,
    prepareLeadMin int, advanceEvery, sweepEvery time.Duration) *Reconciler {
    return &Reconciler{
        reservations:   reservations,
        intervals:      intervals,
        flow:           flow,
        sink:           sink,
        audit:          audit,
        rdb:            rdb,
        Clock:          func() time.Time { return time.Now().UTC() },
        PrepareLeadMin: prepareLeadMin,
        AdvanceEvery:   advanceEvery,
        SweepEvery:     sweepEvery,
    }
}

// Start registers the three jobs on a gocron scheduler and starts it.
// The returned scheduler should be shut down when the process exits.
// Ticks run with singleton mode so a slow sweep cannot overlap itself.
func (r *Reconciler) Start(ctx context.Context) (gocron.Scheduler, error) {
    sched, err := gocron.NewScheduler()
    if err != nil {
        return nil, err
    }
    jobs := []struct {
        name  string
        every time.Duration
        run   func(context.Context) error
    }{
        {"status-advancer", r.AdvanceEvery, r.AdvanceStatuses},
        {"overdue-sweeper", r.SweepEvery, r.SweepOverdue},
        {"deadline-reminder", r.SweepEvery, r.RemindDeadlines},
    }
    for _, j := range jobs {
        j := j
        _, err := sched.NewJob(
            gocron.DurationJob(j.every),
            gocron.NewTask(func() {
                tickCtx, cancel := context.WithTimeout(ctx, j.every)
                defer cancel()
                if err := j.run(tickCtx); err != nil {
                    log.Printf("scheduler: %s tick failed: %v", j.name, err)
                }
            }),
            gocron.WithSingletonMode(gocron.LimitModeReschedule),
            gocron.WithName(j.name),
        )
        if err != nil {
            return nil, err
        }
    }
    sched.Start()
    log.Printf("scheduler: %d reconciliation jobs running", len(jobs))
    return sched, nil
}

func (r *Reconciler) send(ev notify.Event) error {
    if r.sink == nil {
        return nil
    }
    return r.sink.Send(ev)
}

func sameDay(a, b time.Time) bool {
    ay, am, ad := a.UTC().Date()
    by, bm, bd := b.UTC().Date()
    return ay == by && am == bm && ad == bd
}
