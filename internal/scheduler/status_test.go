package scheduler

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"

    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/repository"
)

func rec(date string, startMin, endMin int) repository.ResourceIntervalRecord {
    return repository.ResourceIntervalRecord{
        ResourceKind: "ROOM", ResourceID: 7, Date: date,
        StartMin: startMin, EndMin: endMin, Status: "RESERVED",
    }
}

func at(date string, hh, mm int) time.Time {
    d, _ := time.Parse("2006-01-02", date)
    return d.Add(time.Duration(hh*60+mm) * time.Minute)
}

func TestComputeDisplayStatus(t *testing.T) {
    single := []repository.ResourceIntervalRecord{rec("2025-06-10", 540, 660)} // 09:00-11:00
    split := []repository.ResourceIntervalRecord{
        rec("2025-06-10", 540, 660), // 09:00-11:00
        rec("2025-06-10", 780, 840), // 13:00-14:00
    }

    cases := []struct {
        name string
        now  time.Time
        held []repository.ResourceIntervalRecord
        lead int
        want string
    }{
        {"well before start", at("2025-06-10", 7, 0), single, 30, model.DisplayScheduled},
        {"inside lead window", at("2025-06-10", 8, 45), single, 30, model.DisplayPreparing},
        {"exactly at lead boundary", at("2025-06-10", 8, 30), single, 30, model.DisplayPreparing},
        {"running", at("2025-06-10", 9, 30), single, 30, model.DisplayInProgress},
        {"starts exactly now", at("2025-06-10", 9, 0), single, 30, model.DisplayInProgress},
        {"finished", at("2025-06-10", 11, 0), single, 30, model.DisplayCompleted},
        {"no lead configured", at("2025-06-10", 8, 45), single, 0, model.DisplayScheduled},

        // multi-interval: the lunch gap is still scheduled, not preparing
        {"gap between intervals", at("2025-06-10", 12, 0), split, 30, model.DisplayScheduled},
        {"second interval running", at("2025-06-10", 13, 30), split, 30, model.DisplayInProgress},
        {"after final interval", at("2025-06-10", 14, 0), split, 30, model.DisplayCompleted},
        {"multi-interval never prepares", at("2025-06-10", 8, 45), split, 30, model.DisplayScheduled},

        {"nothing held", at("2025-06-10", 9, 30), nil, 30, model.DisplayScheduled},
    }
    for _, c := range cases {
        t.Run(c.name, func(t *testing.T) {
            assert.Equal(t, c.want, ComputeDisplayStatus(c.now, c.held, c.lead))
        })
    }
}
