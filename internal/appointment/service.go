package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventClinicalNotesAdded     = "CLINICAL_NOTES_ADDED"
	EventClinicalNotesUpdated   = "CLINICAL_NOTES_UPDATED"
)

// Operation names used as metric labels.
const (
	OpCreate              = "create"
	OpConfirm             = "confirm"
	OpCancel              = "cancel"
	OpReschedule          = "reschedule"
	OpAddClinicalNotes    = "add_clinical_notes"
	OpUpdateClinicalNotes = "update_clinical_notes"
)

var (
	ErrScheduleBusy     = errors.New("the doctor's schedule is being modified, please retry")
	ErrInvalidStartTime = scheduling.NewError(scheduling.KindInvalidTimeSlot, "start time must be an ISO-8601 instant")
)

type Deps struct {
	Appointments Repository
	Directory    Directory
	Events       EventStore // optional
	Policy       *scheduling.Policy
	Locker       redisclient.Locker
	Clock        scheduling.Clock
	Metrics      *metrics.Metrics
	Logger       logrus.FieldLogger
}

type Service struct {
	appointments Repository
	directory    Directory
	events       EventStore
	policy       *scheduling.Policy
	locker       redisclient.Locker
	clock        scheduling.Clock
	metrics      *metrics.Metrics
	log          logrus.FieldLogger
}

func NewService(d Deps) *Service {
	s := &Service{
		appointments: d.Appointments,
		directory:    d.Directory,
		events:       d.Events,
		policy:       d.Policy,
		locker:       d.Locker,
		clock:        d.Clock,
		metrics:      d.Metrics,
		log:          d.Logger,
	}

	if s.policy == nil {
		s.policy = scheduling.NewPolicy(d.Appointments, scheduling.DefaultOpeningHour, scheduling.DefaultClosingHour)
	}
	if s.locker == nil {
		s.locker = redisclient.NopLocker{}
	}
	if s.clock == nil {
		s.clock = scheduling.RealClock{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	return s
}

// CreateAppointment books a RESERVED appointment. The availability check and the
// insert run inside the doctor's lock so concurrent bookings for the same doctor
// are serialized.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (created *CreatedAppointment, err error) {
	defer func() { s.metrics.RecordOperation(OpCreate, err) }()

	if _, err := s.directory.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, passDomain("load patient", err)
	}
	if _, err := s.directory.GetDoctorByID(ctx, in.DoctorID); err != nil {
		return nil, passDomain("load doctor", err)
	}

	start, err := parseInstant(in.StartTime)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	slot, err := scheduling.NewTimeSlot(start, now)
	if err != nil {
		return nil, err
	}

	var appt *scheduling.Appointment

	err = s.withDoctorLock(ctx, in.DoctorID, func(lockCtx context.Context) error {
		if err := s.policy.ValidateAvailability(lockCtx, in.DoctorID, slot, uuid.Nil); err != nil {
			return err
		}

		appt = scheduling.NewAppointment(in.PatientID, in.DoctorID, slot, in.Notes, now)
		if err := s.appointments.Save(lockCtx, appt); err != nil {
			return passDomain("save appointment", err)
		}

		s.logEvent(lockCtx, appt.ID(), EventAppointmentCreated, map[string]any{
			"patient_id": in.PatientID.String(),
			"doctor_id":  in.DoctorID.String(),
			"start_time": slot.StartTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreatedAppointment{
		ID:            appt.ID(),
		PatientID:     appt.PatientID(),
		DoctorID:      appt.DoctorID(),
		StartTime:     slot.StartTime(),
		EndTime:       slot.EndTime(),
		BufferEndTime: slot.BufferEndTime(),
		Status:        appt.Status(),
		Notes:         appt.Notes(),
		CreatedAt:     appt.CreatedAt(),
	}, nil
}

func (s *Service) ConfirmAppointment(ctx context.Context, in StatusChangeInput) (res *StatusChange, err error) {
	defer func() { s.metrics.RecordOperation(OpConfirm, err) }()

	return s.changeStatus(ctx, in.AppointmentID, EventAppointmentConfirmed, in.Actor,
		func(appt *scheduling.Appointment, now time.Time) error {
			return appt.Confirm(in.Actor, now)
		})
}

func (s *Service) CancelAppointment(ctx context.Context, in StatusChangeInput) (res *StatusChange, err error) {
	defer func() { s.metrics.RecordOperation(OpCancel, err) }()

	return s.changeStatus(ctx, in.AppointmentID, EventAppointmentCancelled, in.Actor,
		func(appt *scheduling.Appointment, now time.Time) error {
			return appt.Cancel(in.Actor, now)
		})
}

func (s *Service) changeStatus(ctx context.Context, id uuid.UUID, eventType string, actor scheduling.Actor,
	apply func(*scheduling.Appointment, time.Time) error) (*StatusChange, error) {
	appt, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return nil, passDomain("load appointment", err)
	}

	from := appt.Status()
	if err := apply(appt, s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.appointments.Save(ctx, appt); err != nil {
		return nil, passDomain("save appointment", err)
	}

	s.logEvent(ctx, appt.ID(), eventType, map[string]any{
		"from":  from,
		"to":    appt.Status(),
		"actor": actor.Role(),
	})

	return &StatusChange{
		ID:        appt.ID(),
		Status:    appt.Status(),
		UpdatedAt: appt.UpdatedAt(),
	}, nil
}

// RescheduleAppointment moves an appointment to a new start. The appointment's own
// slot is excluded from the overlap check.
func (s *Service) RescheduleAppointment(ctx context.Context, in RescheduleAppointmentInput) (res *RescheduledAppointment, err error) {
	defer func() { s.metrics.RecordOperation(OpReschedule, err) }()

	appt, err := s.appointments.FindByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, passDomain("load appointment", err)
	}

	start, err := parseInstant(in.NewStartTime)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	slot, err := scheduling.NewTimeSlot(start, now)
	if err != nil {
		return nil, err
	}

	previous := appt.TimeSlot().StartTime()

	err = s.withDoctorLock(ctx, appt.DoctorID(), func(lockCtx context.Context) error {
		if err := s.policy.ValidateAvailability(lockCtx, appt.DoctorID(), slot, appt.ID()); err != nil {
			return err
		}
		if err := appt.Reschedule(slot, now); err != nil {
			return err
		}
		if err := s.appointments.Save(lockCtx, appt); err != nil {
			return passDomain("save appointment", err)
		}

		s.logEvent(lockCtx, appt.ID(), EventAppointmentRescheduled, map[string]any{
			"doctor_id":      appt.DoctorID().String(),
			"previous_start": previous,
			"new_start":      slot.StartTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &RescheduledAppointment{
		ID:            appt.ID(),
		StartTime:     slot.StartTime(),
		EndTime:       slot.EndTime(),
		BufferEndTime: slot.BufferEndTime(),
	}, nil
}

func (s *Service) AddClinicalNotes(ctx context.Context, in ClinicalNotesInput) (res *AppointmentClinicalNotes, err error) {
	defer func() { s.metrics.RecordOperation(OpAddClinicalNotes, err) }()

	return s.writeClinicalNotes(ctx, in, EventClinicalNotesAdded,
		func(appt *scheduling.Appointment, notes scheduling.ClinicalNotesInput, now time.Time) error {
			return appt.AddClinicalNotes(notes, in.Actor, now)
		})
}

func (s *Service) UpdateClinicalNotes(ctx context.Context, in ClinicalNotesInput) (res *AppointmentClinicalNotes, err error) {
	defer func() { s.metrics.RecordOperation(OpUpdateClinicalNotes, err) }()

	return s.writeClinicalNotes(ctx, in, EventClinicalNotesUpdated,
		func(appt *scheduling.Appointment, notes scheduling.ClinicalNotesInput, now time.Time) error {
			return appt.UpdateClinicalNotes(notes, in.Actor, now)
		})
}

func (s *Service) writeClinicalNotes(ctx context.Context, in ClinicalNotesInput, eventType string,
	apply func(*scheduling.Appointment, scheduling.ClinicalNotesInput, time.Time) error) (*AppointmentClinicalNotes, error) {
	appt, err := s.appointments.FindByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, passDomain("load appointment", err)
	}

	notes := scheduling.ClinicalNotesInput{
		Observations: in.Observations,
		Diagnosis:    in.Diagnosis,
		Treatment:    in.Treatment,
		FollowUp:     in.FollowUp,
	}
	if err := apply(appt, notes, s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.appointments.Save(ctx, appt); err != nil {
		return nil, passDomain("save appointment", err)
	}

	cn, _ := appt.ClinicalNotes()

	// note content stays out of the event log
	s.logEvent(ctx, appt.ID(), eventType, map[string]any{
		"doctor_id": appt.DoctorID().String(),
		"complete":  cn.IsComplete(),
	})

	return &AppointmentClinicalNotes{
		ID:            appt.ID(),
		ClinicalNotes: notesViewOf(cn),
	}, nil
}

// Read paths

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentView, error) {
	appt, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return nil, passDomain("get appointment", err)
	}
	v := viewOf(appt)
	return &v, nil
}

// ListAppointments filters by patient, doctor, both or neither. Results are ordered by start time.
func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentView, error) {
	var (
		appts []*scheduling.Appointment
		err   error
	)

	switch {
	case f.PatientID != uuid.Nil:
		appts, err = s.appointments.FindByPatientID(ctx, f.PatientID)
	case f.DoctorID != uuid.Nil:
		appts, err = s.appointments.FindByDoctorID(ctx, f.DoctorID)
	default:
		appts, err = s.appointments.FindAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	views := make([]AppointmentView, 0, len(appts))
	for _, a := range appts {
		if f.DoctorID != uuid.Nil && a.DoctorID() != f.DoctorID {
			continue
		}
		views = append(views, viewOf(a))
	}
	return views, nil
}

// DoctorAvailability lists the bookable slots for a doctor on day's calendar date.
func (s *Service) DoctorAvailability(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]AvailableSlot, error) {
	if _, err := s.directory.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, passDomain("load doctor", err)
	}

	free, err := s.policy.FreeSlots(ctx, doctorID, day, s.clock.Now())
	if err != nil {
		return nil, err
	}

	slots := make([]AvailableSlot, 0, len(free))
	for _, slot := range free {
		slots = append(slots, AvailableSlot{
			StartTime:     slot.StartTime().UTC(),
			EndTime:       slot.EndTime().UTC(),
			BufferEndTime: slot.BufferEndTime().UTC(),
		})
	}
	return slots, nil
}

// Helpers

func (s *Service) withDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.locker.WithDoctorLock(ctx, doctorID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}

	entry := s.log.WithFields(logrus.Fields{
		"event_type":     eventType,
		"appointment_id": appointmentID,
	})

	data, err := json.Marshal(payload)
	if err != nil {
		entry.WithError(err).Warn("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.events.InsertEvent(ctx, ev); err != nil {
		entry.WithError(err).Warn("failed to insert event log")
	}
}

// passDomain returns domain errors untouched and wraps everything else with op.
func passDomain(op string, err error) error {
	if scheduling.KindOf(err) != "" {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func parseInstant(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, ErrInvalidStartTime
	}
	return t.UTC(), nil
}
