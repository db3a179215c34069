package appointment

import (
	"fmt"
	"strings"
)

// Status is closed over three values. Every switch on it names all three cases and treats
// anything else as a programming error.
//
//	scheduled → cancelled
//	scheduled → completed
type Status uint8

const (
	StatusScheduled Status = iota + 1
	StatusCancelled
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusCancelled:
		return "cancelled"
	case StatusCompleted:
		return "completed"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether no further transition is legal.
func (s Status) Terminal() bool {
	switch s {
	case StatusScheduled:
		return false
	case StatusCancelled, StatusCompleted:
		return true
	}
	return true
}

func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "scheduled":
		return StatusScheduled, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	case "completed":
		return StatusCompleted, nil
	}
	return 0, errorf(KindValidation, "invalid status %q: must be one of scheduled, cancelled, completed", raw)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func errUnknownStatus(s Status) error {
	return fmt.Errorf("appointment: unknown status %s", s)
}
