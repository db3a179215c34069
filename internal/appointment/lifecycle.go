package appointment

import (
	"time"

	"cloud.google.com/go/civil"
)

// NewAppointment builds a Scheduled appointment, enforcing the slot rules against now.
func NewAppointment(p Policy, patientID, doctorID int64, d civil.Date, t civil.Time, now time.Time) (Appointment, error) {
	if err := p.Validate(d, t, now); err != nil {
		return Appointment{}, err
	}
	return Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      d,
		Time:      t,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Cancel moves a Scheduled appointment to Cancelled. reason is kept only when non-empty.
func (a *Appointment) Cancel(reason string, now time.Time) error {
	switch a.Status {
	case StatusScheduled:
		a.Status = StatusCancelled
		if reason != "" {
			a.CancellationReason = reason
		}
		a.UpdatedAt = now
		return nil
	case StatusCancelled:
		return errorf(KindValidation, "already cancelled")
	case StatusCompleted:
		return errorf(KindValidation, "cannot cancel a completed appointment")
	}
	return errUnknownStatus(a.Status)
}

// Complete moves a Scheduled appointment to Completed.
func (a *Appointment) Complete(now time.Time) error {
	switch a.Status {
	case StatusScheduled:
		a.Status = StatusCompleted
		a.UpdatedAt = now
		return nil
	case StatusCompleted:
		return errorf(KindValidation, "already completed")
	case StatusCancelled:
		return errorf(KindValidation, "cannot complete a cancelled appointment")
	}
	return errUnknownStatus(a.Status)
}

// Rescheduled returns a copy of a moved to a new slot. The id, references, history fields and
// createdAt are carried over. The notice period is measured against the current slot.
func (a Appointment) Rescheduled(p Policy, d civil.Date, t civil.Time, reason string, now time.Time) (Appointment, error) {
	switch a.Status {
	case StatusScheduled:
	case StatusCancelled, StatusCompleted:
		return Appointment{}, errorf(KindBusinessRule, "cannot reschedule a %s appointment", a.Status)
	default:
		return Appointment{}, errUnknownStatus(a.Status)
	}

	if naive(now).Add(p.RescheduleNotice).After(instant(a.Date, a.Time)) {
		return Appointment{}, errorf(KindBusinessRule, "reschedule requires %d hours notice", int(p.RescheduleNotice.Hours()))
	}

	if err := p.Validate(d, t, now); err != nil {
		return Appointment{}, err
	}

	moved := a
	moved.Date = d
	moved.Time = t
	moved.Status = StatusScheduled
	if reason != "" {
		moved.Reason = reason
	}
	moved.UpdatedAt = now
	return moved, nil
}
