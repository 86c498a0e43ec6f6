package scheduler

import (
    "time"

    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/repository"
)

// ComputeDisplayStatus derives the observable status of a confirmed
// reservation from wall-clock time and its held intervals:
//
//   COMPLETED   once now has passed the last interval's end
//   IN_PROGRESS while now falls inside any held interval
//   PREPARING   for single-interval reservations within lead minutes
//               of the start (the room-automation window)
//   SCHEDULED   otherwise — including gaps between two owned
//               intervals, which count as still scheduled
func ComputeDisplayStatus(now time.Time, held []repository.ResourceIntervalRecord, leadMin int) string {
    if len(held) == 0 {
        return model.DisplayScheduled
    }
    var lastEnd time.Time
    for _, rec := range held {
        start := intervalStart(rec)
        end := intervalEnd(rec)
        if !now.Before(start) && now.Before(end) {
            return model.DisplayInProgress
        }
        if end.After(lastEnd) {
            lastEnd = end
        }
    }
    if !now.Before(lastEnd) {
        return model.DisplayCompleted
    }
    if len(held) == 1 && leadMin > 0 {
        start := intervalStart(held[0])
        if !now.Before(start.Add(-time.Duration(leadMin) * time.Minute)) {
            return model.DisplayPreparing
        }
    }
    return model.DisplayScheduled
}

func intervalStart(rec repository.ResourceIntervalRecord) time.Time {
    d, _ := time.Parse("2006-01-02", rec.Date)
    return d.Add(time.Duration(rec.StartMin) * time.Minute)
}

func intervalEnd(rec repository.ResourceIntervalRecord) time.Time {
    d, _ := time.Parse("2006-01-02", rec.Date)
    return d.Add(time.Duration(rec.EndMin) * time.Minute)
}
