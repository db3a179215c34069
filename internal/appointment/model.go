package appointment

import (
	"time"

	"cloud.google.com/go/civil"
)

// DefaultDurationMinutes is used for appointments that were booked without an explicit length.
const DefaultDurationMinutes = 30

type Patient struct {
	ID        int64
	Name      string
	Email     string
	BirthDate civil.Date
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        int64
	Name      string
	Email     string
	Specialty string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment holds references to its patient and doctor, never copies of them.
// Date and Time are naive values in the practice's local time.
type Appointment struct {
	ID                 int64
	PatientID          int64
	DoctorID           int64
	Date               civil.Date
	Time               civil.Time
	Status             Status
	DurationMinutes    int
	Notes              string
	Reason             string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartsAt returns the appointment's naive start instant.
func (a Appointment) StartsAt() civil.DateTime {
	return civil.DateTime{Date: a.Date, Time: a.Time}
}

// Length returns the booked length, falling back to DefaultDurationMinutes.
func (a Appointment) Length() time.Duration {
	if a.DurationMinutes <= 0 {
		return DefaultDurationMinutes * time.Minute
	}
	return time.Duration(a.DurationMinutes) * time.Minute
}

// TimeSlot is a bookable window on a doctor's calendar. ID is 1-based within one computation.
type TimeSlot struct {
	ID              int
	Start           civil.Time
	End             civil.Time
	DurationMinutes int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// instant maps a naive date and time onto a fixed frame so that differences can be computed.
func instant(d civil.Date, t civil.Time) time.Time {
	return civil.DateTime{Date: d, Time: t}.In(time.UTC)
}

// naive strips the location from now so it can be compared with naive appointment times.
func naive(now time.Time) time.Time {
	return civil.DateTimeOf(now).In(time.UTC)
}

func minuteOfDay(t civil.Time) int {
	return t.Hour*60 + t.Minute
}

func timeOfMinute(m int) civil.Time {
	return civil.Time{Hour: m / 60, Minute: m % 60}
}
