package appointment

import (
	"context"

	"cloud.google.com/go/civil"
)

// Store persists appointments. List results are independent copies.
type Store interface {
	FindByID(ctx context.Context, id int64) (*Appointment, error)

	// Save inserts when a.ID is zero, assigning a new id, and overwrites otherwise.
	Save(ctx context.Context, a Appointment) (*Appointment, error)
	Delete(ctx context.Context, id int64) error

	// For conflict checks
	FindByDoctorAndDate(ctx context.Context, doctorID int64, d civil.Date) ([]Appointment, error)
	FindByPatient(ctx context.Context, patientID int64) ([]Appointment, error)
	FindByPatientAndDate(ctx context.Context, patientID int64, d civil.Date) ([]Appointment, error)
	FindExact(ctx context.Context, doctorID, patientID int64, d civil.Date, t civil.Time) (*Appointment, error)

	FindAll(ctx context.Context) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Directory is the read-only patient and doctor lookup.
type Directory interface {
	FindPatientByID(ctx context.Context, id int64) (*Patient, error)
	FindDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error)
}
