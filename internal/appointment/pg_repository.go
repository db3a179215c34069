package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it in tests.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgRepository implements Store and Directory on Postgres.
type PgRepository struct {
	db dbtx
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

func newPgRepositoryWithDB(db dbtx) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, start_minute, duration_minutes,
	status, notes, reason, cancellation_reason, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birthDate *time.Time

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&birthDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	if birthDate != nil {
		p.BirthDate = civil.DateOf(*birthDate)
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.Specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var startMinute int
	var duration *int
	var status string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&date,
		&startMinute,
		&duration,
		&status,
		&a.Notes,
		&a.Reason,
		&a.CancellationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = civil.DateOf(date)
	a.Time = timeOfMinute(startMinute)
	if duration != nil {
		a.DurationMinutes = *duration
	}
	a.Status, err = ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan appointment %d: %w", a.ID, err)
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func dateArg(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func nullableDuration(minutes int) *int {
	if minutes <= 0 {
		return nil
	}
	return &minutes
}

// Directory

func (r *PgRepository) FindPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, birth_date, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) FindDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, specialty, created_at, updated_at
		FROM doctors
		WHERE $1 = '' OR lower(specialty) = lower($1)
		ORDER BY id
	`, specialty)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	result := []Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Store

func (r *PgRepository) FindByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Save(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == 0 {
		row := r.db.QueryRow(ctx, `
			INSERT INTO appointments (patient_id, doctor_id, appointment_date, start_minute, duration_minutes,
				status, notes, reason, cancellation_reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+appointmentColumns,
			a.PatientID, a.DoctorID, dateArg(a.Date), minuteOfDay(a.Time), nullableDuration(a.DurationMinutes),
			a.Status.String(), a.Notes, a.Reason, a.CancellationReason, a.CreatedAt, a.UpdatedAt)
		saved, err := scanAppointment(row)
		if err != nil {
			return nil, fmt.Errorf("insert appointment: %w", err)
		}
		return saved, nil
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, start_minute, duration_minutes,
			status, notes, reason, cancellation_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET appointment_date = EXCLUDED.appointment_date,
		    start_minute = EXCLUDED.start_minute,
		    duration_minutes = EXCLUDED.duration_minutes,
		    status = EXCLUDED.status,
		    notes = EXCLUDED.notes,
		    reason = EXCLUDED.reason,
		    cancellation_reason = EXCLUDED.cancellation_reason,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.DoctorID, dateArg(a.Date), minuteOfDay(a.Time), nullableDuration(a.DurationMinutes),
		a.Status.String(), a.Notes, a.Reason, a.CancellationReason, a.CreatedAt, a.UpdatedAt)
	saved, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("update appointment %d: %w", a.ID, err)
	}
	return saved, nil
}

func (r *PgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) FindByDoctorAndDate(ctx context.Context, doctorID int64, d civil.Date) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2
		ORDER BY start_minute, id
	`, doctorID, dateArg(d))
	if err != nil {
		return nil, fmt.Errorf("find by doctor and date: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) FindByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date, start_minute, id
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("find by patient: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) FindByPatientAndDate(ctx context.Context, patientID int64, d civil.Date) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND appointment_date = $2
		ORDER BY start_minute, id
	`, patientID, dateArg(d))
	if err != nil {
		return nil, fmt.Errorf("find by patient and date: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) FindExact(ctx context.Context, doctorID, patientID int64, d civil.Date, t civil.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND patient_id = $2 AND appointment_date = $3 AND start_minute = $4
		ORDER BY id
		LIMIT 1
	`, doctorID, patientID, dateArg(d), minuteOfDay(t))
	return scanAppointment(row)
}

func (r *PgRepository) FindAll(ctx context.Context) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY appointment_date, start_minute, id
	`)
	if err != nil {
		return nil, fmt.Errorf("find all appointments: %w", err)
	}
	return scanAppointments(rows)
}

// Event log

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// FetchUnpublishedEvents returns up to limit events not yet relayed, oldest first.
func (r *PgRepository) FetchUnpublishedEvents(ctx context.Context, limit int) ([]EventLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) MarkEventsPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE event_logs
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
