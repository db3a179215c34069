package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

func parseDate(raw string) (civil.Date, error) {
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, errors.New("date must be YYYY-MM-DD")
	}
	return d, nil
}

// parseClock accepts HH:MM and HH:MM:SS.
func parseClock(raw string) (civil.Time, error) {
	if t, err := time.Parse("15:04", raw); err == nil {
		return civil.TimeOf(t), nil
	}
	t, err := civil.ParseTime(raw)
	if err != nil {
		return civil.Time{}, errors.New("time must be HH:MM")
	}
	return t, nil
}

func formatClock(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func optionalID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%s must be a positive integer", name)
	}
	return &id, nil
}

func optionalDate(r *http.Request, name string) (*civil.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := parseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &d, nil
}

// listFilter reads the shared listing query parameters.
func listFilter(r *http.Request) (appointment.ListFilter, error) {
	var f appointment.ListFilter
	var err error

	if f.PatientID, err = optionalID(r, "patient_id"); err != nil {
		return f, err
	}
	if f.DoctorID, err = optionalID(r, "doctor_id"); err != nil {
		return f, err
	}
	if f.Date, err = optionalDate(r, "date"); err != nil {
		return f, err
	}
	if f.StartDate, err = optionalDate(r, "start_date"); err != nil {
		return f, err
	}
	if f.EndDate, err = optionalDate(r, "end_date"); err != nil {
		return f, err
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := appointment.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	return f, nil
}
