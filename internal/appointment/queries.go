package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel/attribute"
)

// ListFilter narrows appointment listings. Nil fields are ignored.
// Date cannot be combined with a range, and a range needs both ends.
type ListFilter struct {
	PatientID *int64
	DoctorID  *int64
	Date      *civil.Date
	Status    *Status
	StartDate *civil.Date
	EndDate   *civil.Date
}

func (f ListFilter) validate() error {
	if f.Date != nil && (f.StartDate != nil || f.EndDate != nil) {
		return errorf(KindValidation, "cannot combine a date with a date range")
	}
	if (f.StartDate == nil) != (f.EndDate == nil) {
		return errorf(KindValidation, "both start and end date are required for a range")
	}
	if f.StartDate != nil && f.StartDate.After(*f.EndDate) {
		return errorf(KindValidation, "start date cannot be after end date")
	}
	return nil
}

func (f ListFilter) match(a Appointment) bool {
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.Date != nil && a.Date != *f.Date {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.StartDate != nil && (a.Date.Before(*f.StartDate) || a.Date.After(*f.EndDate)) {
		return false
	}
	return true
}

func (f ListFilter) apply(appts []Appointment) []Appointment {
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if f.match(a) {
			out = append(out, a)
		}
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool {
		return instant(out[i].Date, out[i].Time).After(instant(out[j].Date, out[j].Time))
	})
	return out
}

// GetAppointment returns one appointment to its patient, its doctor or an admin.
func (s *Service) GetAppointment(ctx context.Context, id, requestingUserID int64, isAdmin bool) (appt *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.get")
	defer s.finish(span, "get", time.Now(), &err)
	span.SetAttributes(attribute.Int64("clinic.appointment_id", id))

	appt, err = s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrap("load appointment", err)
	}
	if !isAdmin && appt.PatientID != requestingUserID && appt.DoctorID != requestingUserID {
		return nil, errorf(KindUnauthorized, "you can only view your own appointments")
	}
	return appt, nil
}

// ListPatientAppointments lists a patient's appointments, newest first.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID, requestingUserID int64, isAdmin bool, filter ListFilter) (appts []Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.list_patient")
	defer s.finish(span, "list_patient", time.Now(), &err)
	span.SetAttributes(attribute.Int64("clinic.patient_id", patientID))

	if !isAdmin && patientID != requestingUserID {
		return nil, errorf(KindUnauthorized, "you can only view your own appointments")
	}
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if _, err := s.directory.FindPatientByID(ctx, patientID); err != nil {
		return nil, wrap("load patient", err)
	}

	all, err := s.store.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient appointments: %w", err)
	}
	filter.PatientID = &patientID
	return filter.apply(all), nil
}

// GetDoctorAppointments lists a doctor's calendar for one day. Doctors only see their own.
func (s *Service) GetDoctorAppointments(ctx context.Context, doctorID int64, d civil.Date, requestingDoctorID int64) (appts []Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.list_doctor")
	defer s.finish(span, "list_doctor", time.Now(), &err)
	span.SetAttributes(
		attribute.Int64("clinic.doctor_id", doctorID),
		attribute.String("clinic.date", d.String()),
	)

	if doctorID != requestingDoctorID {
		return nil, errorf(KindUnauthorized, "you can only view your own appointments")
	}
	if !d.IsValid() {
		return nil, errorf(KindValidation, "date is required")
	}
	if _, err := s.directory.FindDoctorByID(ctx, doctorID); err != nil {
		return nil, wrap("load doctor", err)
	}

	appts, err = s.store.FindByDoctorAndDate(ctx, doctorID, d)
	if err != nil {
		return nil, fmt.Errorf("load doctor appointments: %w", err)
	}
	return appts, nil
}

// ListAllAppointments is the admin listing, newest first.
func (s *Service) ListAllAppointments(ctx context.Context, filter ListFilter) (appts []Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.list_all")
	defer s.finish(span, "list_all", time.Now(), &err)

	if err := filter.validate(); err != nil {
		return nil, err
	}

	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return filter.apply(all), nil
}

// ListDoctorsBySpecialty lists doctors whose specialty matches case-insensitively; empty lists all.
func (s *Service) ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	doctors, err := s.directory.ListDoctorsBySpecialty(ctx, specialty)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}
