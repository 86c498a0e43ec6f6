package scheduler

import (
    "context"
    "database/sql/driver"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/go-redis/redismock/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/avelio/room-reservation/internal/ledger"
    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/notify"
    "github.com/avelio/room-reservation/internal/repository"
    "github.com/avelio/room-reservation/internal/workflow"
)

type fakeSink struct {
    events []notify.Event
}

func (f *fakeSink) Send(ev notify.Event) error {
    f.events = append(f.events, ev)
    return nil
}

var testClock = time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)

func newTestReconciler(t *testing.T) (*Reconciler, sqlmock.Sqlmock, *fakeSink) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() { db.Close() })

    reservations := repository.NewReservationRepo(db)
    intervals := repository.NewResourceIntervalRepo(db)
    audit := repository.NewAuditRepo(db)
    sink := &fakeSink{}
    flow := workflow.NewService(db, reservations,
        repository.NewPaymentProofRepo(db),
        repository.NewRoomRepo(db),
        repository.NewEquipmentRepo(db),
        ledger.New(intervals), sink, audit, 3)
    flow.Clock = func() time.Time { return testClock }

    r := New(reservations, intervals, flow, sink, audit, nil, 30, time.Minute, 15*time.Minute)
    r.Clock = func() time.Time { return testClock }
    return r, mock, sink
}

var reservationCols = []string{
    "id", "reference", "name", "description", "requester_id", "room_id",
    "approval_state", "payment_state", "display_status", "starts_at", "ends_at", "payment_deadline",
    "payment_method", "department_code", "total_amount_cents", "room_cost_cents", "equipment_cost_cents", "booth_cost_cents",
    "reviewed_at", "reviewed_by", "approved_at", "paid_at", "cancelled_at", "reject_reason",
    "last_reminder_at", "last_reminder_offset", "created_at", "updated_at",
}

var intervalCols = []string{"id", "resource_kind", "resource_id", "date", "start_min", "end_min", "status", "reservation_id", "locked_at", "released_at"}

func nullable(t *time.Time) driver.Value {
    if t == nil {
        return nil
    }
    return *t
}

func addReservation(rows *sqlmock.Rows, res model.Reservation) *sqlmock.Rows {
    return rows.AddRow(
        res.ID, res.Reference, res.Name, res.Description, res.RequesterID, res.RoomID,
        res.ApprovalState, res.PaymentState, res.DisplayStatus,
        nullable(res.StartsAt), nullable(res.EndsAt), nullable(res.PaymentDeadline),
        res.PaymentMethod, res.DepartmentCode, res.TotalAmountCents, res.RoomCostCents, res.EquipmentCostCents, res.BoothCostCents,
        nil, nil, nil, nil, nil, nil,
        nullable(res.LastReminderAt), nil, testClock, testClock)
}

func overduePending(id uint64, paymentState string) model.Reservation {
    deadline := testClock.AddDate(0, 0, -2)
    return model.Reservation{
        ID: id, Reference: "ref", Name: "Overdue booking", RequesterID: 5, RoomID: 7,
        ApprovalState: model.ApprovalPendingPayment, PaymentState: paymentState,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "COUNTER",
        PaymentDeadline: &deadline,
    }
}

func TestSweepOverdueCancelsAndNotifies(t *testing.T) {
    r, mock, sink := newTestReconciler(t)
    ctx := context.Background()

    res := overduePending(41, model.PaymentUnpaid)
    mock.ExpectQuery(`(?s)FROM reservations.+DATE\(payment_deadline\) <`).
        WithArgs("2025-06-05").
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), res))

    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), res))
    mock.ExpectExec(`UPDATE reservations`).
        WithArgs(workflow.SystemCancelReason, 41).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(`UPDATE resource_intervals`).
        WithArgs(41).WillReturnResult(sqlmock.NewResult(0, 2))
    mock.ExpectCommit()
    mock.ExpectExec("INSERT INTO audit_log").
        WillReturnResult(sqlmock.NewResult(1, 1))

    require.NoError(t, r.SweepOverdue(ctx))
    require.Len(t, sink.events, 1)
    assert.Equal(t, notify.KindReservationCancelled, sink.events[0].Kind)
    assert.Contains(t, sink.events[0].Body, workflow.SystemCancelReason)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepOverdueSkipsPaidSinceListing(t *testing.T) {
    r, mock, sink := newTestReconciler(t)
    ctx := context.Background()

    listed := overduePending(41, model.PaymentUnpaid)
    mock.ExpectQuery(`(?s)FROM reservations.+DATE\(payment_deadline\) <`).
        WithArgs("2025-06-05").
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), listed))

    // by the time the row lock is taken the requester has paid
    paid := listed
    paid.PaymentState = model.PaymentPaid
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), paid))
    mock.ExpectRollback()

    require.NoError(t, r.SweepOverdue(ctx))
    assert.Empty(t, sink.events)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepOverdueIsolatesFailures(t *testing.T) {
    r, mock, sink := newTestReconciler(t)
    ctx := context.Background()

    first := overduePending(41, model.PaymentUnpaid)
    second := overduePending(42, model.PaymentUnpaid)
    rows := sqlmock.NewRows(reservationCols)
    addReservation(rows, first)
    addReservation(rows, second)
    mock.ExpectQuery(`(?s)FROM reservations.+DATE\(payment_deadline\) <`).
        WithArgs("2025-06-05").WillReturnRows(rows)

    // first reservation fails mid-transaction
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).WillReturnError(assert.AnError)
    mock.ExpectRollback()

    // second still goes through
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(42).
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), second))
    mock.ExpectExec(`UPDATE reservations`).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(`UPDATE resource_intervals`).
        WithArgs(42).WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()
    mock.ExpectExec("INSERT INTO audit_log").
        WillReturnResult(sqlmock.NewResult(1, 1))

    require.NoError(t, r.SweepOverdue(ctx))
    require.Len(t, sink.events, 1)
    assert.Equal(t, uint64(42), sink.events[0].ReservationID)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepOverdueSkipsWhenGuardHeld(t *testing.T) {
    r, mock, sink := newTestReconciler(t)
    rdb, rmock := redismock.NewClientMock()
    r.rdb = rdb
    ctx := context.Background()

    // another instance swept today already; no listing, no cancels
    rmock.ExpectSetNX("sweeper:ran:2025-06-05", 1, 36*time.Hour).SetVal(false)

    require.NoError(t, r.SweepOverdue(ctx))
    assert.Empty(t, sink.events)
    assert.NoError(t, mock.ExpectationsWereMet())
    assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestSweepOverdueReleasesGuardWhenListingFails(t *testing.T) {
    r, mock, _ := newTestReconciler(t)
    rdb, rmock := redismock.NewClientMock()
    r.rdb = rdb
    ctx := context.Background()

    rmock.ExpectSetNX("sweeper:ran:2025-06-05", 1, 36*time.Hour).SetVal(true)
    mock.ExpectQuery(`(?s)FROM reservations.+DATE\(payment_deadline\) <`).
        WithArgs("2025-06-05").WillReturnError(assert.AnError)
    // the run key must be dropped so the next tick retries today
    rmock.ExpectDel("sweeper:ran:2025-06-05").SetVal(1)

    require.ErrorIs(t, r.SweepOverdue(ctx), assert.AnError)
    assert.NoError(t, mock.ExpectationsWereMet())
    assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestSweepOverdueReleasesGuardWhenCancelFails(t *testing.T) {
    r, mock, sink := newTestReconciler(t)
    rdb, rmock := redismock.NewClientMock()
    r.rdb = rdb
    ctx := context.Background()

    rmock.ExpectSetNX("sweeper:ran:2025-06-05", 1, 36*time.Hour).SetVal(true)

    res := overduePending(41, model.PaymentUnpaid)
    mock.ExpectQuery(`(?s)FROM reservations.+DATE\(payment_deadline\) <`).
        WithArgs("2025-06-05").
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), res))
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(41).WillReturnError(assert.AnError)
    mock.ExpectRollback()

    // one reservation is still overdue, so today's run key is released
    rmock.ExpectDel("sweeper:ran:2025-06-05").SetVal(1)

    require.NoError(t, r.SweepOverdue(ctx))
    assert.Empty(t, sink.events)
    assert.NoError(t, mock.ExpectationsWereMet())
    assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestRemindDeadlines(t *testing.T) {
    r, mock, sink := newTestReconciler(t)
    ctx := context.Background()

    deadline3 := testClock.AddDate(0, 0, 3)
    due3 := model.Reservation{
        ID: 41, Reference: "ref-41", Name: "Booking A", RequesterID: 5, RoomID: 7,
        ApprovalState: model.ApprovalPendingPayment, PaymentState: model.PaymentUnpaid,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "COUNTER", PaymentDeadline: &deadline3,
    }
    // reminded earlier today already; must be skipped
    deadline1 := testClock.AddDate(0, 0, 1)
    remindedAt := testClock.Add(-2 * time.Hour)
    due1 := model.Reservation{
        ID: 42, Reference: "ref-42", Name: "Booking B", RequesterID: 6, RoomID: 7,
        ApprovalState: model.ApprovalPendingPayment, PaymentState: model.PaymentUnpaid,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "COUNTER",
        PaymentDeadline: &deadline1, LastReminderAt: &remindedAt,
    }

    mock.ExpectQuery(`(?s)FROM reservations.+DATE\(payment_deadline\) =`).
        WithArgs("2025-06-08").
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), due3))
    mock.ExpectExec(`UPDATE reservations SET last_reminder_at`).
        WithArgs(3, 41).WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery(`(?s)FROM reservations.+DATE\(payment_deadline\) =`).
        WithArgs("2025-06-06").
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), due1))

    require.NoError(t, r.RemindDeadlines(ctx))
    require.Len(t, sink.events, 1)
    assert.Equal(t, notify.KindPaymentReminder, sink.events[0].Kind)
    assert.Equal(t, uint64(41), sink.events[0].ReservationID)
    assert.Contains(t, sink.events[0].Subject, "3 day")
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceStatusesFiresPrepareOnce(t *testing.T) {
    r, mock, sink := newTestReconciler(t)
    ctx := context.Background()

    starts := time.Date(2025, 6, 5, 9, 15, 0, 0, time.UTC)
    ends := starts.Add(time.Hour)
    confirmed := model.Reservation{
        ID: 41, Reference: "ref-41", Name: "Booking A", RequesterID: 5, RoomID: 7,
        ApprovalState: model.ApprovalConfirmed, PaymentState: model.PaymentPaid,
        DisplayStatus: model.DisplayScheduled, PaymentMethod: "COUNTER",
        StartsAt: &starts, EndsAt: &ends,
    }
    day := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)

    mock.ExpectQuery(`(?s)FROM reservations.+approval_state = 'CONFIRMED'`).
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), confirmed))
    // 09:15-10:15, now 09:00, lead 30min -> PREPARING
    mock.ExpectQuery(`(?s)FROM resource_intervals.+ORDER BY date, start_min`).
        WithArgs(41).
        WillReturnRows(sqlmock.NewRows(intervalCols).
            AddRow(1, "ROOM", 7, day, 555, 615, "RESERVED", int64(41), day, nil))
    mock.ExpectExec(`UPDATE reservations SET display_status`).
        WithArgs(model.DisplayPreparing, 41).
        WillReturnResult(sqlmock.NewResult(0, 1))

    require.NoError(t, r.AdvanceStatuses(ctx))
    require.Len(t, sink.events, 1)
    assert.Equal(t, notify.KindRoomPrepare, sink.events[0].Kind)

    // second tick: stored status already PREPARING, nothing changes
    prepared := confirmed
    prepared.DisplayStatus = model.DisplayPreparing
    mock.ExpectQuery(`(?s)FROM reservations.+approval_state = 'CONFIRMED'`).
        WillReturnRows(addReservation(sqlmock.NewRows(reservationCols), prepared))
    mock.ExpectQuery(`(?s)FROM resource_intervals.+ORDER BY date, start_min`).
        WithArgs(41).
        WillReturnRows(sqlmock.NewRows(intervalCols).
            AddRow(1, "ROOM", 7, day, 555, 615, "RESERVED", int64(41), day, nil))

    require.NoError(t, r.AdvanceStatuses(ctx))
    assert.Len(t, sink.events, 1, "prepare hook must not fire again")
    assert.NoError(t, mock.ExpectationsWereMet())
}
