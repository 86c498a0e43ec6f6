package ledger

import (
    "context"
    "database/sql"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/avelio/room-reservation/internal/repository"
    "github.com/avelio/room-reservation/internal/timeslot"
)

var intervalCols = []string{"id", "resource_kind", "resource_id", "date", "start_min", "end_min", "status", "reservation_id", "locked_at", "released_at"}

func newTestLedger(t *testing.T) (*Ledger, *sql.DB, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() { db.Close() })
    return New(repository.NewResourceIntervalRepo(db)), db, mock
}

func begin(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
    t.Helper()
    mock.ExpectBegin()
    tx, err := db.Begin()
    require.NoError(t, err)
    return tx
}

func TestLockTxInsertsWhenClear(t *testing.T) {
    lg, db, mock := newTestLedger(t)
    ctx := context.Background()
    tx := begin(t, db, mock)

    mock.ExpectQuery(`(?s)FROM resource_intervals.+FOR UPDATE`).
        WithArgs("ROOM", 7, "2025-06-10").
        WillReturnRows(sqlmock.NewRows(intervalCols))
    // no reclaimable AVAILABLE row, fall through to insert
    mock.ExpectExec("UPDATE resource_intervals").
        WithArgs(41, 660, "ROOM", 7, "2025-06-10", 600).
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectExec("INSERT INTO resource_intervals").
        WithArgs("ROOM", 7, "2025-06-10", 600, 660, 41).
        WillReturnResult(sqlmock.NewResult(1, 1))

    err := lg.LockTx(ctx, tx, 41, []Hold{{
        Kind: "ROOM", ResourceID: 7, Date: "2025-06-10",
        Slots: []timeslot.Slot{{Start: 600, End: 660}},
    }})
    require.NoError(t, err)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockTxReclaimsAvailableRow(t *testing.T) {
    lg, db, mock := newTestLedger(t)
    ctx := context.Background()
    tx := begin(t, db, mock)

    mock.ExpectQuery(`(?s)FROM resource_intervals.+FOR UPDATE`).
        WithArgs("ROOM", 7, "2025-06-10").
        WillReturnRows(sqlmock.NewRows(intervalCols))
    // released row with the same start is reclaimed in place, no insert
    mock.ExpectExec("UPDATE resource_intervals").
        WithArgs(41, 660, "ROOM", 7, "2025-06-10", 600).
        WillReturnResult(sqlmock.NewResult(0, 1))

    err := lg.LockTx(ctx, tx, 41, []Hold{{
        Kind: "ROOM", ResourceID: 7, Date: "2025-06-10",
        Slots: []timeslot.Slot{{Start: 600, End: 660}},
    }})
    require.NoError(t, err)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockTxDetectsOverlap(t *testing.T) {
    lg, db, mock := newTestLedger(t)
    ctx := context.Background()
    tx := begin(t, db, mock)

    day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
    mock.ExpectQuery(`(?s)FROM resource_intervals.+FOR UPDATE`).
        WithArgs("ROOM", 7, "2025-06-10").
        WillReturnRows(sqlmock.NewRows(intervalCols).
            AddRow(3, "ROOM", 7, day, 630, 690, "LOCKED", int64(99), day, nil))

    err := lg.LockTx(ctx, tx, 41, []Hold{{
        Kind: "ROOM", ResourceID: 7, Date: "2025-06-10",
        Slots: []timeslot.Slot{{Start: 600, End: 660}},
    }})
    ce, ok := err.(*ConflictError)
    require.True(t, ok, "got %v", err)
    require.Len(t, ce.Conflicts, 1)
    assert.Equal(t, "10:00-11:00", ce.Conflicts[0].Requested.String())
    assert.Equal(t, "10:30-11:30", ce.Conflicts[0].Existing.Slot().String())
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockTxIgnoresOwnIntervals(t *testing.T) {
    lg, db, mock := newTestLedger(t)
    ctx := context.Background()
    tx := begin(t, db, mock)

    day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
    mock.ExpectQuery(`(?s)FROM resource_intervals.+FOR UPDATE`).
        WithArgs("ROOM", 7, "2025-06-10").
        WillReturnRows(sqlmock.NewRows(intervalCols).
            AddRow(3, "ROOM", 7, day, 630, 690, "LOCKED", int64(41), day, nil))
    mock.ExpectExec("UPDATE resource_intervals").
        WillReturnResult(sqlmock.NewResult(0, 1))

    err := lg.LockTx(ctx, tx, 41, []Hold{{
        Kind: "ROOM", ResourceID: 7, Date: "2025-06-10",
        Slots: []timeslot.Slot{{Start: 600, End: 660}},
    }})
    require.NoError(t, err)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockTxAllOrNothingAcrossHolds(t *testing.T) {
    lg, db, mock := newTestLedger(t)
    ctx := context.Background()
    tx := begin(t, db, mock)

    day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
    // room is clear but the projector is taken; nothing may be inserted
    mock.ExpectQuery(`(?s)FROM resource_intervals.+FOR UPDATE`).
        WithArgs("ROOM", 7, "2025-06-10").
        WillReturnRows(sqlmock.NewRows(intervalCols))
    mock.ExpectQuery(`(?s)FROM resource_intervals.+FOR UPDATE`).
        WithArgs("EQUIPMENT", 3, "2025-06-10").
        WillReturnRows(sqlmock.NewRows(intervalCols).
            AddRow(8, "EQUIPMENT", 3, day, 600, 660, "RESERVED", int64(99), day, nil))

    err := lg.LockTx(ctx, tx, 41, []Hold{
        {Kind: "ROOM", ResourceID: 7, Date: "2025-06-10", Slots: []timeslot.Slot{{Start: 600, End: 660}}},
        {Kind: "EQUIPMENT", ResourceID: 3, Date: "2025-06-10", Slots: []timeslot.Slot{{Start: 600, End: 660}}},
    })
    _, ok := err.(*ConflictError)
    require.True(t, ok, "got %v", err)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardCollapsesDuplicateHoldKeys(t *testing.T) {
    lg, _, _ := newTestLedger(t)
    h := Hold{Kind: "EQUIPMENT", ResourceID: 5, Date: "2025-06-10",
        Slots: []timeslot.Slot{{Start: 600, End: 660}}}

    done := make(chan struct{})
    go func() {
        // Two holds on the same resource-day must acquire the key once,
        // not twice, and the key must be usable again after release.
        release := lg.Guard([]Hold{h, h})
        release()
        release = lg.Guard([]Hold{h})
        release()
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatal("Guard hung on duplicate hold keys")
    }
    assert.Empty(t, lg.guard.locks)
}

func TestPromoteAndReleaseRowCounts(t *testing.T) {
    lg, db, mock := newTestLedger(t)
    ctx := context.Background()
    tx := begin(t, db, mock)

    mock.ExpectExec(`UPDATE resource_intervals SET status = 'RESERVED'`).
        WithArgs(41).WillReturnResult(sqlmock.NewResult(0, 3))
    n, err := lg.PromoteTx(ctx, tx, 41)
    require.NoError(t, err)
    assert.Equal(t, int64(3), n)

    mock.ExpectExec(`UPDATE resource_intervals`).
        WithArgs(41).WillReturnResult(sqlmock.NewResult(0, 3))
    n, err = lg.ReleaseTx(ctx, tx, 41)
    require.NoError(t, err)
    assert.Equal(t, int64(3), n)
    assert.NoError(t, mock.ExpectationsWereMet())
}
