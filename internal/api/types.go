package api

import (
	"time"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID int64  `json:"patient_id"`
	DoctorID  int64  `json:"doctor_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Time      string `json:"time"` // HH:MM
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type RescheduleAppointmentRequest struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID                 int64     `json:"id"`
	PatientID          int64     `json:"patient_id"`
	DoctorID           int64     `json:"doctor_id"`
	Date               string    `json:"date"`
	Time               string    `json:"time"`
	Status             string    `json:"status"`
	DurationMinutes    int       `json:"duration_minutes"`
	Notes              string    `json:"notes,omitempty"`
	Reason             string    `json:"reason,omitempty"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type TimeSlotResponse struct {
	ID              int    `json:"id"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}

type DoctorResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Specialty string `json:"specialty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		DoctorID:           a.DoctorID,
		Date:               a.Date.String(),
		Time:               formatClock(a.Time),
		Status:             a.Status.String(),
		DurationMinutes:    int(a.Length() / time.Minute),
		Notes:              a.Notes,
		Reason:             a.Reason,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAppointmentResponses(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toSlotResponses(slots []appointment.TimeSlot) []TimeSlotResponse {
	out := make([]TimeSlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, TimeSlotResponse{
			ID:              s.ID,
			Start:           formatClock(s.Start),
			End:             formatClock(s.End),
			DurationMinutes: s.DurationMinutes,
		})
	}
	return out
}

func toDoctorResponses(doctors []appointment.Doctor) []DoctorResponse {
	out := make([]DoctorResponse, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, DoctorResponse{
			ID:        d.ID,
			Name:      d.Name,
			Email:     d.Email,
			Specialty: d.Specialty,
		})
	}
	return out
}
