package scheduling

import "fmt"

type Status string

const (
	StatusReserved  Status = "RESERVED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus rejects anything outside the three known values.
func ParseStatus(v string) (Status, error) {
	switch s := Status(v); s {
	case StatusReserved, StatusConfirmed, StatusCancelled:
		return s, nil
	default:
		return "", NewError(KindInvalidStatus, fmt.Sprintf("invalid appointment status: %q", v))
	}
}

func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusReserved:
		return target == StatusConfirmed || target == StatusCancelled
	case StatusConfirmed:
		return target == StatusCancelled
	default:
		return false
	}
}

func (s Status) CanConfirm() bool { return s.CanTransitionTo(StatusConfirmed) }
func (s Status) CanCancel() bool  { return s.CanTransitionTo(StatusCancelled) }

func (s Status) String() string { return string(s) }
