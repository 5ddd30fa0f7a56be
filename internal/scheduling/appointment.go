package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Appointment is the aggregate root for one booking between a patient and a doctor.
// All state changes go through its methods so the invariants hold on every path.
type Appointment struct {
	id            uuid.UUID
	patientID     uuid.UUID
	doctorID      uuid.UUID
	timeSlot      TimeSlot
	status        Status
	notes         *string
	clinicalNotes *ClinicalNotes
	createdAt     time.Time
	updatedAt     time.Time
}

// NewAppointment creates a RESERVED appointment. Blank notes are stored as absent.
func NewAppointment(patientID, doctorID uuid.UUID, slot TimeSlot, notes string, now time.Time) *Appointment {
	var n *string
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		n = &trimmed
	}
	return &Appointment{
		id:        uuid.New(),
		patientID: patientID,
		doctorID:  doctorID,
		timeSlot:  slot,
		status:    StatusReserved,
		notes:     n,
		createdAt: now,
		updatedAt: now,
	}
}

// Snapshot is the flat persisted form of an Appointment.
type Snapshot struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	StartTime     time.Time
	Status        string
	Notes         *string
	ClinicalNotes *ClinicalNotesInput
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RestoreAppointment rebuilds an aggregate from storage. The time slot is trusted;
// status and clinical notes are still validated.
func RestoreAppointment(s Snapshot) (*Appointment, error) {
	status, err := ParseStatus(s.Status)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		id:        s.ID,
		patientID: s.PatientID,
		doctorID:  s.DoctorID,
		timeSlot:  RestoreTimeSlot(s.StartTime),
		status:    status,
		notes:     cloneString(s.Notes),
		createdAt: s.CreatedAt,
		updatedAt: s.UpdatedAt,
	}

	if s.ClinicalNotes != nil {
		cn, err := NewClinicalNotes(*s.ClinicalNotes)
		if err != nil {
			return nil, err
		}
		a.clinicalNotes = &cn
	}

	return a, nil
}

func (a *Appointment) Snapshot() Snapshot {
	s := Snapshot{
		ID:        a.id,
		PatientID: a.patientID,
		DoctorID:  a.doctorID,
		StartTime: a.timeSlot.StartTime(),
		Status:    string(a.status),
		Notes:     cloneString(a.notes),
		CreatedAt: a.createdAt,
		UpdatedAt: a.updatedAt,
	}
	if a.clinicalNotes != nil {
		in := a.clinicalNotes.Input()
		s.ClinicalNotes = &in
	}
	return s
}

func (a *Appointment) ID() uuid.UUID        { return a.id }
func (a *Appointment) PatientID() uuid.UUID { return a.patientID }
func (a *Appointment) DoctorID() uuid.UUID  { return a.doctorID }
func (a *Appointment) TimeSlot() TimeSlot   { return a.timeSlot }
func (a *Appointment) Status() Status       { return a.status }
func (a *Appointment) Notes() *string       { return cloneString(a.notes) }
func (a *Appointment) CreatedAt() time.Time { return a.createdAt }
func (a *Appointment) UpdatedAt() time.Time { return a.updatedAt }

func (a *Appointment) ClinicalNotes() (ClinicalNotes, bool) {
	if a.clinicalNotes == nil {
		return ClinicalNotes{}, false
	}
	return *a.clinicalNotes, true
}

func (a *Appointment) Confirm(actor Actor, now time.Time) error {
	if !actor.mayConfirm() {
		return NewError(KindForbidden, "only a doctor can confirm an appointment")
	}
	if !a.status.CanConfirm() {
		return NewError(KindInvalidTransition,
			fmt.Sprintf("cannot confirm an appointment with status %s", a.status))
	}

	a.status = StatusConfirmed
	a.touch(now)
	return nil
}

// Cancel requires the actor's minimum notice before the current start time.
func (a *Appointment) Cancel(actor Actor, now time.Time) error {
	if !a.status.CanCancel() {
		return NewError(KindInvalidTransition,
			fmt.Sprintf("cannot cancel an appointment with status %s", a.status))
	}

	required := actor.cancellationLeadTime()
	if a.timeUntilStart(now) < required {
		return NewError(KindLeadTimeViolation,
			fmt.Sprintf("%s must cancel at least %s before the appointment",
				strings.ToLower(actor.Role()), formatHours(required)))
	}

	a.status = StatusCancelled
	a.touch(now)
	return nil
}

// Reschedule moves the appointment to slot. Lead time is measured against the
// current start, not the new one.
func (a *Appointment) Reschedule(slot TimeSlot, now time.Time) error {
	if a.status == StatusCancelled {
		return NewError(KindInvalidTransition, "cannot reschedule a cancelled appointment")
	}
	if a.timeUntilStart(now) < RescheduleLeadTime {
		return NewError(KindLeadTimeViolation,
			fmt.Sprintf("cannot reschedule with less than %s notice", formatHours(RescheduleLeadTime)))
	}
	if a.timeSlot.Overlaps(slot) {
		return NewError(KindSlotConflict, "the new time overlaps the current appointment")
	}

	a.timeSlot = slot
	a.touch(now)
	return nil
}

func (a *Appointment) AddClinicalNotes(in ClinicalNotesInput, actor Actor, now time.Time) error {
	if !actor.mayWriteClinicalNotes() {
		return NewError(KindForbidden, "only a doctor can add clinical notes")
	}
	if a.clinicalNotes != nil {
		return NewError(KindAlreadyExists, "clinical notes already exist for this appointment")
	}

	cn, err := NewClinicalNotes(in)
	if err != nil {
		return err
	}

	a.clinicalNotes = &cn
	a.touch(now)
	return nil
}

func (a *Appointment) UpdateClinicalNotes(in ClinicalNotesInput, actor Actor, now time.Time) error {
	if !actor.mayWriteClinicalNotes() {
		return NewError(KindForbidden, "only a doctor can update clinical notes")
	}
	if a.clinicalNotes == nil {
		return NewError(KindNotFound, "no clinical notes to update")
	}

	cn, err := NewClinicalNotes(in)
	if err != nil {
		return err
	}

	a.clinicalNotes = &cn
	a.touch(now)
	return nil
}

func (a *Appointment) timeUntilStart(now time.Time) time.Duration {
	return a.timeSlot.StartTime().Sub(now)
}

func (a *Appointment) touch(now time.Time) {
	a.updatedAt = now
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%gh", d.Hours())
}
