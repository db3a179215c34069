package appointment

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, f *fixture) []*Appointment {
	t.Helper()
	wednesday := civil.Date{Year: 2025, Month: time.June, Day: 11}

	a := f.book(t, alice, drSmith, tuesday, clock(10, 0))
	b := f.book(t, alice, drJones, wednesday, clock(9, 0))
	c := f.book(t, alice, drSmith, friday, clock(11, 0))
	d := f.book(t, bob, drSmith, tuesday, clock(11, 0))

	_, err := f.svc.CancelAppointment(context.Background(), b.ID, alice, "")
	require.NoError(t, err)
	return []*Appointment{a, b, c, d}
}

func ids(appts []Appointment) []int64 {
	out := make([]int64, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.ID)
	}
	return out
}

func TestGetAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, alice, drSmith, tuesday, clock(10, 0))

	for _, who := range []int64{alice, drSmith} {
		got, err := f.svc.GetAppointment(ctx, a.ID, who, false)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
	}

	_, err := f.svc.GetAppointment(ctx, a.ID, bob, false)
	requireKind(t, err, KindUnauthorized, "")

	_, err = f.svc.GetAppointment(ctx, a.ID, bob, true)
	require.NoError(t, err)

	_, err = f.svc.GetAppointment(ctx, 404, alice, true)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestListPatientAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := seedHistory(t, f)

	all, err := f.svc.ListPatientAppointments(ctx, alice, alice, false, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{h[2].ID, h[1].ID, h[0].ID}, ids(all), "newest first")

	status := StatusCancelled
	cancelled, err := f.svc.ListPatientAppointments(ctx, alice, alice, false, ListFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, []int64{h[1].ID}, ids(cancelled))

	day := tuesday
	onTuesday, err := f.svc.ListPatientAppointments(ctx, alice, alice, false, ListFilter{Date: &day})
	require.NoError(t, err)
	assert.Equal(t, []int64{h[0].ID}, ids(onTuesday))

	start, end := tuesday, civil.Date{Year: 2025, Month: time.June, Day: 11}
	ranged, err := f.svc.ListPatientAppointments(ctx, alice, stranger, true, ListFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, []int64{h[1].ID, h[0].ID}, ids(ranged))

	doctor := drSmith
	withSmith, err := f.svc.ListPatientAppointments(ctx, alice, alice, false, ListFilter{DoctorID: &doctor})
	require.NoError(t, err)
	assert.Equal(t, []int64{h[2].ID, h[0].ID}, ids(withSmith))
}

func TestListPatientAppointmentsRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListPatientAppointments(ctx, alice, bob, false, ListFilter{})
	requireKind(t, err, KindUnauthorized, "you can only view your own appointments")

	_, err = f.svc.ListPatientAppointments(ctx, stranger, stranger, false, ListFilter{})
	assert.ErrorIs(t, err, ErrPatientNotFound)

	day, start, end := tuesday, tuesday, friday
	tests := []struct {
		name   string
		filter ListFilter
		msg    string
	}{
		{"date with range", ListFilter{Date: &day, StartDate: &start, EndDate: &end}, "cannot combine a date with a date range"},
		{"open range", ListFilter{StartDate: &start}, "both start and end date are required for a range"},
		{"inverted range", ListFilter{StartDate: &end, EndDate: &start}, "start date cannot be after end date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ListPatientAppointments(ctx, alice, alice, false, tt.filter)
			requireKind(t, err, KindValidation, tt.msg)
		})
	}
}

func TestGetDoctorAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := seedHistory(t, f)

	day, err := f.svc.GetDoctorAppointments(ctx, drSmith, tuesday, drSmith)
	require.NoError(t, err)
	assert.Equal(t, []int64{h[0].ID, h[3].ID}, ids(day), "calendar order")

	_, err = f.svc.GetDoctorAppointments(ctx, drSmith, tuesday, drJones)
	requireKind(t, err, KindUnauthorized, "you can only view your own appointments")

	_, err = f.svc.GetDoctorAppointments(ctx, stranger, tuesday, stranger)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = f.svc.GetDoctorAppointments(ctx, drSmith, civil.Date{}, drSmith)
	requireKind(t, err, KindValidation, "date is required")
}

func TestListAllAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := seedHistory(t, f)

	all, err := f.svc.ListAllAppointments(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{h[2].ID, h[1].ID, h[3].ID, h[0].ID}, ids(all))

	patient := bob
	bobs, err := f.svc.ListAllAppointments(ctx, ListFilter{PatientID: &patient})
	require.NoError(t, err)
	assert.Equal(t, []int64{h[3].ID}, ids(bobs))

	_, err = f.svc.ListAllAppointments(ctx, ListFilter{EndDate: &friday})
	requireKind(t, err, KindValidation, "")
}

func TestServiceListDoctorsBySpecialty(t *testing.T) {
	f := newFixture(t)

	docs, err := f.svc.ListDoctorsBySpecialty(context.Background(), "dermatology")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, drJones, docs[0].ID)
}
