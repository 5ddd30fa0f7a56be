package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultOpeningHour = 8
	DefaultClosingHour = 18

	// overlapSearchMargin widens the candidate query on both sides.
	overlapSearchMargin = time.Hour
)

// AppointmentFinder returns a doctor's non-cancelled appointments whose ranges
// intersect [start, end).
type AppointmentFinder interface {
	FindByDoctorAndTimeRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*Appointment, error)
}

// Policy validates a candidate slot against working hours and the doctor's other bookings.
// Working hours are wall-clock hours in the clinic's location.
type Policy struct {
	finder      AppointmentFinder
	openingHour int
	closingHour int
	loc         *time.Location
}

type PolicyOption func(*Policy)

// WithLocation sets the zone working hours and calendar days are read in. Default UTC.
func WithLocation(loc *time.Location) PolicyOption {
	return func(p *Policy) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func NewPolicy(finder AppointmentFinder, openingHour, closingHour int, opts ...PolicyOption) *Policy {
	p := &Policy{
		finder:      finder,
		openingHour: openingHour,
		closingHour: closingHour,
		loc:         time.UTC,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) OpeningHour() int         { return p.openingHour }
func (p *Policy) ClosingHour() int         { return p.closingHour }
func (p *Policy) Location() *time.Location { return p.loc }

// ValidateAvailability runs the working-hours check, then the overlap check.
// excludeID (uuid.Nil for none) skips the appointment being rescheduled.
func (p *Policy) ValidateAvailability(ctx context.Context, doctorID uuid.UUID, slot TimeSlot, excludeID uuid.UUID) error {
	if !p.WithinWorkingHours(slot) {
		return NewError(KindOutsideWorkingHours,
			fmt.Sprintf("appointments must be scheduled between %d:00 and %d:00", p.openingHour, p.closingHour))
	}

	existing, err := p.finder.FindByDoctorAndTimeRange(ctx, doctorID,
		slot.StartTime().Add(-overlapSearchMargin),
		slot.BufferEndTime().Add(overlapSearchMargin))
	if err != nil {
		return fmt.Errorf("load doctor appointments: %w", err)
	}

	for _, appt := range existing {
		if excludeID != uuid.Nil && appt.ID() == excludeID {
			continue
		}
		if slot.Overlaps(appt.TimeSlot()) {
			return NewError(KindSlotConflict, "the selected time conflicts with an existing appointment")
		}
	}

	return nil
}

// WithinWorkingHours compares wall-clock hours in the clinic location, whatever
// offset the instants were written with.
func (p *Policy) WithinWorkingHours(slot TimeSlot) bool {
	start := slot.StartTime().In(p.loc)
	bufferEnd := slot.BufferEndTime().In(p.loc)

	if start.Hour() < p.openingHour || bufferEnd.Hour() > p.closingHour {
		return false
	}
	return sameDay(start, bufferEnd)
}

// FreeSlots lists bookable slots for the doctor on day's calendar date (taken as
// a date in the clinic location), stepping by SlotSpan from the opening hour.
func (p *Policy) FreeSlots(ctx context.Context, doctorID uuid.UUID, day, now time.Time) ([]TimeSlot, error) {
	first := time.Date(day.Year(), day.Month(), day.Day(), p.openingHour, 0, 0, 0, p.loc)
	last := time.Date(day.Year(), day.Month(), day.Day(), p.closingHour, 0, 0, 0, p.loc)

	existing, err := p.finder.FindByDoctorAndTimeRange(ctx, doctorID,
		first.Add(-overlapSearchMargin), last.Add(overlapSearchMargin))
	if err != nil {
		return nil, fmt.Errorf("load doctor appointments: %w", err)
	}

	var free []TimeSlot
	for start := first; start.Before(last); start = start.Add(SlotSpan) {
		slot, err := NewTimeSlot(start, now)
		if err != nil {
			continue
		}
		if !p.WithinWorkingHours(slot) {
			continue
		}
		if overlapsAny(slot, existing) {
			continue
		}
		free = append(free, slot)
	}

	return free, nil
}

func overlapsAny(slot TimeSlot, appts []*Appointment) bool {
	for _, appt := range appts {
		if slot.Overlaps(appt.TimeSlot()) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
