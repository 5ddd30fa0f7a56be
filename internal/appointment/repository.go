package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var (
	ErrPatientNotFound     = scheduling.NewError(scheduling.KindNotFound, "patient not found")
	ErrDoctorNotFound      = scheduling.NewError(scheduling.KindNotFound, "doctor not found")
	ErrAppointmentNotFound = scheduling.NewError(scheduling.KindNotFound, "appointment not found")
)

// Repository persists Appointment aggregates.
type Repository interface {
	// Save inserts or replaces the appointment with the same ID.
	Save(ctx context.Context, appt *scheduling.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)

	// For conflict checks; cancelled appointments are never returned
	FindByDoctorAndTimeRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*scheduling.Appointment, error)

	// Read paths, ordered by start time
	FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error)
	FindByDoctorID(ctx context.Context, doctorID uuid.UUID) ([]*scheduling.Appointment, error)
	FindAll(ctx context.Context) ([]*scheduling.Appointment, error)
}

// Directory holds patients and doctors referenced by appointments.
type Directory interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	CreatePatient(ctx context.Context, p *Patient) error
	CreateDoctor(ctx context.Context, d *Doctor) error
	ListPatients(ctx context.Context) ([]Patient, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
}

// EventStore is the append-only event log read by the outbox relay.
type EventStore interface {
	InsertEvent(ctx context.Context, ev EventLog) error
	FetchUnpublished(ctx context.Context, limit int) ([]EventLog, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
}
