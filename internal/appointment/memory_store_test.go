package appointment

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appt(patientID, doctorID int64, d civil.Date, at civil.Time) Appointment {
	return Appointment{PatientID: patientID, DoctorID: doctorID, Date: d, Time: at, Status: StatusScheduled}
}

func TestMemoryStoreSaveAssignsIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := s.Save(ctx, appt(1, 2, tuesday, clock(10, 0)))
	require.NoError(t, err)
	b, err := s.Save(ctx, appt(3, 2, tuesday, clock(11, 0)))
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	// saving again keeps the id
	a.Notes = "updated"
	again, err := s.Save(ctx, *a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ID)

	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "updated", all[0].Notes)
}

func TestMemoryStoreIndexesFollowUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := s.Save(ctx, appt(1, 2, tuesday, clock(10, 0)))
	require.NoError(t, err)

	moved := *a
	moved.Date = friday
	_, err = s.Save(ctx, moved)
	require.NoError(t, err)

	onTuesday, err := s.FindByDoctorAndDate(ctx, 2, tuesday)
	require.NoError(t, err)
	assert.Empty(t, onTuesday)

	onFriday, err := s.FindByDoctorAndDate(ctx, 2, friday)
	require.NoError(t, err)
	require.Len(t, onFriday, 1)

	patientTuesday, err := s.FindByPatientAndDate(ctx, 1, tuesday)
	require.NoError(t, err)
	assert.Empty(t, patientTuesday)

	_, err = s.FindExact(ctx, 2, 1, tuesday, clock(10, 0))
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	found, err := s.FindExact(ctx, 2, 1, friday, clock(10, 0))
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := s.Save(ctx, appt(1, 2, tuesday, clock(10, 0)))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrAppointmentNotFound)

	_, err = s.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	byDoctor, _ := s.FindByDoctorAndDate(ctx, 2, tuesday)
	byPatient, _ := s.FindByPatient(ctx, 1)
	assert.Empty(t, byDoctor)
	assert.Empty(t, byPatient)
	assert.Empty(t, s.byDoctorDay)
	assert.Empty(t, s.byPatient)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Save(ctx, appt(1, 2, tuesday, clock(10, 0)))
	require.NoError(t, err)

	list, err := s.FindByPatient(ctx, 1)
	require.NoError(t, err)
	list[0].Status = StatusCancelled
	list[0].Date = friday

	one, err := s.FindByID(ctx, 1)
	require.NoError(t, err)
	one.Time = clock(15, 0)

	fresh, err := s.FindByPatient(ctx, 1)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, StatusScheduled, fresh[0].Status)
	assert.Equal(t, tuesday, fresh[0].Date)
	assert.Equal(t, clock(10, 0), fresh[0].Time)
}

func TestMemoryStoreChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, a := range []Appointment{
		appt(1, 2, friday, clock(9, 0)),
		appt(1, 3, tuesday, clock(15, 0)),
		appt(1, 4, tuesday, clock(9, 0)),
	} {
		_, err := s.Save(ctx, a)
		require.NoError(t, err)
	}

	list, err := s.FindByPatient(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{4, 3, 2}, []int64{list[0].DoctorID, list[1].DoctorID, list[2].DoctorID})
}

func TestMemoryStoreEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id := int64(5)
	for _, typ := range []string{EventAppointmentCreated, EventAppointmentCancelled, EventAppointmentDeleted} {
		require.NoError(t, s.InsertEvent(ctx, EventLog{EventType: typ, AppointmentID: &id, CreatedAt: testNow}))
	}
	require.Len(t, s.Events(), 3)

	batch, err := s.FetchUnpublishedEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, EventAppointmentCreated, batch[0].EventType)

	require.NoError(t, s.MarkEventsPublished(ctx, []int64{batch[0].ID, batch[1].ID}))

	rest, err := s.FetchUnpublishedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, EventAppointmentDeleted, rest[0].EventType)
	assert.NotNil(t, s.Events()[0].PublishedAt)
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()

	p := d.AddPatient(Patient{Name: "Ana", Email: "ana@example.com"})
	cardio := d.AddDoctor(Doctor{Name: "Dr. Ruiz", Specialty: "Cardiology"})
	derm := d.AddDoctor(Doctor{Name: "Dr. Lee", Specialty: "Dermatology"})
	d.AddDoctor(Doctor{ID: 10, Name: "Dr. Park", Specialty: "cardiology"})
	next := d.AddPatient(Patient{Name: "Ben"})

	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, int64(11), next.ID)

	got, err := d.FindDoctorByID(ctx, derm.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Lee", got.Name)

	_, err = d.FindPatientByID(ctx, 404)
	assert.ErrorIs(t, err, ErrPatientNotFound)
	_, err = d.FindDoctorByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	cardiologists, err := d.ListDoctorsBySpecialty(ctx, "CARDIOLOGY")
	require.NoError(t, err)
	require.Len(t, cardiologists, 2)
	assert.Equal(t, cardio.ID, cardiologists[0].ID)
	assert.Equal(t, int64(10), cardiologists[1].ID)

	all, err := d.ListDoctorsBySpecialty(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInstantIgnoresLocation(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, loc)
	assert.Equal(t, instant(civil.DateOf(now), civil.TimeOf(now)), naive(now))
}
