package appointment

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures. Infrastructure errors carry no kind.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindUnauthorized
	KindValidation
	KindConflict
	KindBusinessRule
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	case KindBusinessRule:
		return "business_rule_violation"
	}
	return "unknown"
}

// Error is a classified engine failure with a human-readable message.
type Error struct {
	Kind Kind
	Msg  string

	// set on the per-kind sentinels so errors.Is matches by kind
	anyOfKind bool
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.anyOfKind && t.Kind == e.Kind
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound, Msg: "not found", anyOfKind: true}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Msg: "unauthorized", anyOfKind: true}
	ErrValidation   = &Error{Kind: KindValidation, Msg: "validation error", anyOfKind: true}
	ErrConflict     = &Error{Kind: KindConflict, Msg: "conflict", anyOfKind: true}
	ErrBusinessRule = &Error{Kind: KindBusinessRule, Msg: "business rule violation", anyOfKind: true}

	ErrPatientNotFound     = &Error{Kind: KindNotFound, Msg: "patient not found"}
	ErrDoctorNotFound      = &Error{Kind: KindNotFound, Msg: "doctor not found"}
	ErrAppointmentNotFound = &Error{Kind: KindNotFound, Msg: "appointment not found"}

	ErrSlotBusy = &Error{Kind: KindConflict, Msg: "appointment slot is being modified by another request"}
)

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
