package appointment

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// WorkingSchedule is a doctor's day: [Start, End) with a lunch break in between.
type WorkingSchedule struct {
	Start      civil.Time
	End        civil.Time
	LunchStart civil.Time
	LunchEnd   civil.Time
}

// DefaultSchedule returns the practice schedule for d. Fridays are shortened.
func DefaultSchedule(d civil.Date) WorkingSchedule {
	if d.In(time.UTC).Weekday() == time.Friday {
		return WorkingSchedule{
			Start:      civil.Time{Hour: 9},
			End:        civil.Time{Hour: 14},
			LunchStart: civil.Time{Hour: 12, Minute: 30},
			LunchEnd:   civil.Time{Hour: 13, Minute: 30},
		}
	}
	return WorkingSchedule{
		Start:      civil.Time{Hour: 9},
		End:        civil.Time{Hour: 18},
		LunchStart: civil.Time{Hour: 13},
		LunchEnd:   civil.Time{Hour: 14},
	}
}

func isWeekend(d civil.Date) bool {
	switch d.In(time.UTC).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// interval is a half-open range of minutes since midnight.
type interval struct {
	start int
	end   int
}

func (i interval) overlaps(start, end int) bool {
	return start < i.end && i.start < end
}

// ComputeSlots walks the schedule from its start and returns every window of durationMinutes
// that overlaps neither the lunch break nor a booked appointment.
func ComputeSlots(schedule WorkingSchedule, booked []Appointment, durationMinutes int) []TimeSlot {
	if durationMinutes <= 0 {
		return nil
	}

	busy := make([]interval, 0, len(booked)+1)
	busy = append(busy, interval{start: minuteOfDay(schedule.LunchStart), end: minuteOfDay(schedule.LunchEnd)})
	for _, a := range booked {
		start := minuteOfDay(a.Time)
		busy = append(busy, interval{start: start, end: start + int(a.Length()/time.Minute)})
	}
	sort.Slice(busy, func(i, j int) bool {
		return busy[i].start < busy[j].start
	})

	var slots []TimeSlot
	end := minuteOfDay(schedule.End)
	t := minuteOfDay(schedule.Start)
	for durationMinutes <= end-t {
		slotEnd := t + durationMinutes
		if next, blocked := firstOverlap(busy, t, slotEnd); blocked {
			t = next
			continue
		}
		slots = append(slots, TimeSlot{
			ID:              len(slots) + 1,
			Start:           timeOfMinute(t),
			End:             timeOfMinute(slotEnd),
			DurationMinutes: durationMinutes,
		})
		t = slotEnd
	}
	return slots
}

// firstOverlap returns the end of the first busy interval overlapping [start, end).
func firstOverlap(busy []interval, start, end int) (int, bool) {
	for _, b := range busy {
		if b.overlaps(start, end) {
			return b.end, true
		}
	}
	return 0, false
}
