package appointment

import (
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func starts(slots []TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, hhmm(s.Start))
	}
	return out
}

func TestDefaultSchedule(t *testing.T) {
	weekday := DefaultSchedule(tuesday)
	assert.Equal(t, clock(9, 0), weekday.Start)
	assert.Equal(t, clock(18, 0), weekday.End)
	assert.Equal(t, clock(13, 0), weekday.LunchStart)
	assert.Equal(t, clock(14, 0), weekday.LunchEnd)

	fri := DefaultSchedule(friday)
	assert.Equal(t, clock(14, 0), fri.End)
	assert.Equal(t, clock(12, 30), fri.LunchStart)
	assert.Equal(t, clock(13, 30), fri.LunchEnd)

	assert.True(t, isWeekend(civil.Date{Year: 2025, Month: time.June, Day: 14}))
	assert.True(t, isWeekend(civil.Date{Year: 2025, Month: time.June, Day: 15}))
	assert.False(t, isWeekend(friday))
}

func TestComputeSlotsFreeDay(t *testing.T) {
	slots := ComputeSlots(DefaultSchedule(tuesday), nil, 60)

	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00"}, starts(slots))
	for i, s := range slots {
		assert.Equal(t, i+1, s.ID)
		assert.Equal(t, 60, s.DurationMinutes)
	}
}

func TestComputeSlotsSkipsBookings(t *testing.T) {
	booked := []Appointment{
		{ID: 1, Date: tuesday, Time: clock(10, 0), DurationMinutes: 30},
	}
	slots := ComputeSlots(DefaultSchedule(tuesday), booked, 60)

	assert.Equal(t, []string{"09:00", "10:30", "11:30", "14:00", "15:00", "16:00", "17:00"}, starts(slots))
}

func TestComputeSlotsDefaultsBookingLength(t *testing.T) {
	booked := []Appointment{{ID: 1, Date: tuesday, Time: clock(9, 0)}}
	slots := ComputeSlots(DefaultSchedule(tuesday), booked, 30)

	require.NotEmpty(t, slots)
	assert.Equal(t, "09:30", hhmm(slots[0].Start))
}

func TestComputeSlotsFridayScenario(t *testing.T) {
	booked := []Appointment{
		{ID: 1, Date: friday, Time: clock(14, 0), DurationMinutes: 30, Status: StatusScheduled},
	}
	slots := ComputeSlots(DefaultSchedule(friday), booked, 30)

	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00", "13:30"}, starts(slots))
	for _, s := range slots {
		assert.LessOrEqual(t, minuteOfDay(s.End), 14*60)
	}
}

func TestComputeSlotsNeverOverlapBusyTime(t *testing.T) {
	booked := []Appointment{
		{ID: 1, Time: clock(9, 30), DurationMinutes: 45},
		{ID: 2, Time: clock(11, 0)},
		{ID: 3, Time: clock(15, 30), DurationMinutes: 90},
		{ID: 4, Time: clock(12, 30), DurationMinutes: 60}, // runs into lunch
	}
	schedule := DefaultSchedule(tuesday)

	for _, duration := range []int{15, 20, 30, 45, 60, 90, 120} {
		slots := ComputeSlots(schedule, booked, duration)
		busy := []interval{{start: 13 * 60, end: 14 * 60}}
		for _, a := range booked {
			busy = append(busy, interval{start: minuteOfDay(a.Time), end: minuteOfDay(a.Time) + int(a.Length()/time.Minute)})
		}

		prevEnd := 0
		for _, s := range slots {
			start, end := minuteOfDay(s.Start), minuteOfDay(s.End)
			assert.Equal(t, duration, end-start)
			assert.GreaterOrEqual(t, start, 9*60)
			assert.LessOrEqual(t, end, 18*60)
			assert.GreaterOrEqual(t, start, prevEnd, "slots overlap each other")
			prevEnd = end
			for _, b := range busy {
				assert.False(t, b.overlaps(start, end), "duration %d: slot %s overlaps busy %d-%d", duration, hhmm(s.Start), b.start, b.end)
			}
		}
	}
}

func TestComputeSlotsLongerThanDay(t *testing.T) {
	assert.Empty(t, ComputeSlots(DefaultSchedule(friday), nil, 6*60))
	assert.Nil(t, ComputeSlots(DefaultSchedule(friday), nil, 0))
}

func TestComputeSlotsHugeDuration(t *testing.T) {
	for _, duration := range []int{9*60 + 1, math.MaxInt - 100, math.MaxInt} {
		assert.Empty(t, ComputeSlots(DefaultSchedule(tuesday), nil, duration), "duration %d", duration)
	}

	halves := ComputeSlots(DefaultSchedule(tuesday), nil, 4*60)
	assert.Equal(t, []string{"09:00", "14:00"}, starts(halves))
}
