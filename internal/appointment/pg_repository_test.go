package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "patient_id", "doctor_id", "appointment_date", "start_minute", "duration_minutes",
	"status", "notes", "reason", "cancellation_reason", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPgRepositoryWithDB(mock), mock
}

func intPtr(v int) *int { return &v }

func appointmentRow(rows *pgxmock.Rows, id int64, status string, duration *int) *pgxmock.Rows {
	return rows.AddRow(id, alice, drSmith, dateArg(tuesday), 10*60, duration,
		status, "", "", "", testNow, testNow)
}

func TestPgFindByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM appointments\s+WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(appointmentRow(mock.NewRows(appointmentCols), 7, "scheduled", intPtr(45)))

	a, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, tuesday, a.Date)
	assert.Equal(t, clock(10, 0), a.Time)
	assert.Equal(t, 45, a.DurationMinutes)
	assert.Equal(t, StatusScheduled, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM appointments\s+WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgScanRejectsUnknownStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM appointments\s+WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(appointmentRow(mock.NewRows(appointmentCols), 7, "no_show", nil))

	_, err := repo.FindByID(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_show")
}

func TestPgSaveInsertsNewAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)

	a := appt(alice, drSmith, tuesday, clock(10, 0))
	a.CreatedAt, a.UpdatedAt = testNow, testNow

	mock.ExpectQuery(`INSERT INTO appointments \(patient_id`).
		WithArgs(alice, drSmith, dateArg(tuesday), 600, pgxmock.AnyArg(), "scheduled", "", "", "", testNow, testNow).
		WillReturnRows(appointmentRow(mock.NewRows(appointmentCols), 12, "scheduled", nil))

	saved, err := repo.Save(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(12), saved.ID)
	assert.Zero(t, saved.DurationMinutes)
	assert.Equal(t, DefaultDurationMinutes*time.Minute, saved.Length())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSaveUpsertsExistingAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)

	a := appt(alice, drSmith, tuesday, clock(10, 0))
	a.ID = 12
	a.Status = StatusCancelled
	a.CancellationReason = "travel"

	mock.ExpectQuery(`ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(int64(12), alice, drSmith, dateArg(tuesday), 600, pgxmock.AnyArg(), "cancelled",
			"", "", "travel", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(appointmentCols).
			AddRow(int64(12), alice, drSmith, dateArg(tuesday), 600, (*int)(nil), "cancelled", "", "", "travel", testNow, testNow))

	saved, err := repo.Save(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, saved.Status)
	assert.Equal(t, "travel", saved.CancellationReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM appointments WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM appointments WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 3), ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindByDoctorAndDate(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := mock.NewRows(appointmentCols)
	appointmentRow(rows, 1, "scheduled", nil)
	appointmentRow(rows, 2, "completed", intPtr(60))
	mock.ExpectQuery(`WHERE doctor_id = \$1 AND appointment_date = \$2`).
		WithArgs(drSmith, dateArg(tuesday)).
		WillReturnRows(rows)

	list, err := repo.FindByDoctorAndDate(context.Background(), drSmith, tuesday)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, StatusCompleted, list[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindByPatientEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`WHERE patient_id = \$1`).
		WithArgs(alice).
		WillReturnRows(mock.NewRows(appointmentCols))

	list, err := repo.FindByPatient(context.Background(), alice)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestPgFindExact(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`start_minute = \$4`).
		WithArgs(drSmith, alice, dateArg(tuesday), 600).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindExact(context.Background(), drSmith, alice, tuesday, clock(10, 0))
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgQueryErrorsAreWrapped(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM appointments`).WillReturnError(errors.New("conn closed"))

	_, err := repo.FindAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Contains(t, err.Error(), "conn closed")
}

func TestPgDirectory(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	birth := time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM patients`).
		WithArgs(alice).
		WillReturnRows(mock.NewRows([]string{"id", "name", "email", "birth_date", "created_at", "updated_at"}).
			AddRow(alice, "Alice", "alice@example.com", &birth, testNow, testNow))
	mock.ExpectQuery(`FROM doctors\s+WHERE id = \$1`).
		WithArgs(stranger).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`lower\(specialty\) = lower\(\$1\)`).
		WithArgs("cardiology").
		WillReturnRows(mock.NewRows([]string{"id", "name", "email", "specialty", "created_at", "updated_at"}).
			AddRow(drSmith, "Dr. Smith", "smith@example.com", "Cardiology", testNow, testNow))

	p, err := repo.FindPatientByID(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, 1990, p.BirthDate.Year)

	_, err = repo.FindDoctorByID(ctx, stranger)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	doctors, err := repo.ListDoctorsBySpecialty(ctx, "cardiology")
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, drSmith, doctors[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgEventOutbox(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	id := int64(9)
	mock.ExpectExec(`INSERT INTO event_logs`).
		WithArgs(EventAppointmentCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`WHERE published_at IS NULL`).
		WithArgs(100).
		WillReturnRows(mock.NewRows([]string{"id", "event_type", "appointment_id", "payload", "created_at"}).
			AddRow(int64(1), EventAppointmentCreated, &id, []byte(`{"doctor_id":101}`), testNow))
	mock.ExpectExec(`SET published_at = now\(\)`).
		WithArgs([]int64{1}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.InsertEvent(ctx, EventLog{EventType: EventAppointmentCreated, AppointmentID: &id}))

	events, err := repo.FetchUnpublishedEvents(ctx, 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(9), *events[0].AppointmentID)

	require.NoError(t, repo.MarkEventsPublished(ctx, []int64{events[0].ID}))
	require.NoError(t, repo.MarkEventsPublished(ctx, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
