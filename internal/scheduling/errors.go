package scheduling

import "errors"

// Kind classifies a business-rule rejection.
type Kind string

const (
	KindInvalidTimeSlot      Kind = "invalid_time_slot"
	KindOutsideWorkingHours  Kind = "outside_working_hours"
	KindSlotConflict         Kind = "slot_conflict"
	KindInvalidStatus        Kind = "invalid_status"
	KindInvalidTransition    Kind = "invalid_transition"
	KindLeadTimeViolation    Kind = "lead_time_violation"
	KindForbidden            Kind = "forbidden"
	KindAlreadyExists        Kind = "already_exists"
	KindNotFound             Kind = "not_found"
	KindInvalidClinicalNotes Kind = "invalid_clinical_notes"
)

// Error is the single error type raised for domain rule violations.
// Infrastructure failures are never wrapped in it.
type Error struct {
	Kind    Kind
	Message string
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is reports a match when target is a kind-level sentinel (no message) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind-level sentinels for errors.Is.
var (
	ErrInvalidTimeSlot      = &Error{Kind: KindInvalidTimeSlot}
	ErrOutsideWorkingHours  = &Error{Kind: KindOutsideWorkingHours}
	ErrSlotConflict         = &Error{Kind: KindSlotConflict}
	ErrInvalidStatus        = &Error{Kind: KindInvalidStatus}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition}
	ErrLeadTimeViolation    = &Error{Kind: KindLeadTimeViolation}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrAlreadyExists        = &Error{Kind: KindAlreadyExists}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidClinicalNotes = &Error{Kind: KindInvalidClinicalNotes}
)

// KindOf returns the domain kind carried by err, or "" for non-domain errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
