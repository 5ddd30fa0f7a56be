package scheduling

import "time"

const (
	AppointmentDuration = 30 * time.Minute
	BufferDuration      = 30 * time.Minute

	// SlotSpan is the full footprint of one booking on a doctor's day.
	SlotSpan = AppointmentDuration + BufferDuration
)

// TimeSlot is a bookable interval derived from its start instant.
type TimeSlot struct {
	start time.Time
}

// NewTimeSlot validates that start lies strictly after now.
func NewTimeSlot(start, now time.Time) (TimeSlot, error) {
	if start.IsZero() || !start.After(now) {
		return TimeSlot{}, NewError(KindInvalidTimeSlot, "appointment cannot be scheduled in the past")
	}
	return TimeSlot{start: start}, nil
}

// RestoreTimeSlot rebuilds a persisted slot without validation.
func RestoreTimeSlot(start time.Time) TimeSlot {
	return TimeSlot{start: start}
}

func (s TimeSlot) StartTime() time.Time     { return s.start }
func (s TimeSlot) EndTime() time.Time       { return s.start.Add(AppointmentDuration) }
func (s TimeSlot) BufferEndTime() time.Time { return s.start.Add(SlotSpan) }

func (s TimeSlot) IsZero() bool { return s.start.IsZero() }

// Overlaps compares the buffer-extended intervals of both slots.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.start.Before(other.BufferEndTime()) && s.BufferEndTime().After(other.start)
}

func (s TimeSlot) Equal(other TimeSlot) bool {
	return s.start.Equal(other.start)
}
