package appointment

import (
	"time"

	"cloud.google.com/go/civil"
)

// Policy holds the booking rules that need no store access.
type Policy struct {
	OpensAt          civil.Time    // first bookable time of day, inclusive
	ClosesAt         civil.Time    // exclusive
	GridMinutes      int           // appointments start on multiples of this
	DoctorBuffer     time.Duration // minimum distance between two appointments of one doctor
	RescheduleNotice time.Duration // minimum lead time before the current slot to reschedule
}

func DefaultPolicy() Policy {
	return Policy{
		OpensAt:          civil.Time{Hour: 8},
		ClosesAt:         civil.Time{Hour: 20},
		GridMinutes:      30,
		DoctorBuffer:     30 * time.Minute,
		RescheduleNotice: 24 * time.Hour,
	}
}

// Validate checks working hours, the time grid and that the slot lies strictly after now,
// in that order. The first failing rule is returned.
func (p Policy) Validate(d civil.Date, t civil.Time, now time.Time) error {
	if !d.IsValid() || !t.IsValid() {
		return errorf(KindValidation, "appointment date and time are required")
	}

	m := minuteOfDay(t)
	if m < minuteOfDay(p.OpensAt) || m >= minuteOfDay(p.ClosesAt) {
		return errorf(KindValidation, "appointment must be between %s and %s", hhmm(p.OpensAt), hhmm(p.ClosesAt))
	}

	grid := p.GridMinutes
	if grid <= 0 {
		grid = 1
	}
	if t.Minute%grid != 0 || t.Second != 0 || t.Nanosecond != 0 {
		return errorf(KindValidation, "appointment time must be on a %d-minute boundary", grid)
	}

	if !instant(d, t).After(naive(now)) {
		return errorf(KindValidation, "appointment must be in the future")
	}

	return nil
}

// withinBuffer reports whether two slots of the same doctor are closer than the buffer.
func (p Policy) withinBuffer(a, b civil.DateTime) bool {
	diff := instant(a.Date, a.Time).Sub(instant(b.Date, b.Time))
	if diff < 0 {
		diff = -diff
	}
	return diff < p.DoctorBuffer
}

func hhmm(t civil.Time) string {
	return civil.Time{Hour: t.Hour, Minute: t.Minute}.String()[:5]
}
