package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Age       int
	Gender    Gender
	Address   string
	Phone     string
	Email     string
	Allergies *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID            uuid.UUID
	Name          string
	Specialty     string
	LicenseNumber string
	Phone         string
	Email         string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// Use-case inputs

type CreateAppointmentInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartTime string // ISO-8601 instant
	Notes     string
}

type RescheduleAppointmentInput struct {
	AppointmentID uuid.UUID
	NewStartTime  string
}

type StatusChangeInput struct {
	AppointmentID uuid.UUID
	Actor         scheduling.Actor
}

type ClinicalNotesInput struct {
	AppointmentID uuid.UUID
	Actor         scheduling.Actor
	Observations  string
	Diagnosis     *string
	Treatment     *string
	FollowUp      *string
}

type ListFilter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}

// Projections returned to the transport layer. The aggregate never leaves this package.

type CreatedAppointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	BufferEndTime time.Time
	Status        scheduling.Status
	Notes         *string
	CreatedAt     time.Time
}

type StatusChange struct {
	ID        uuid.UUID
	Status    scheduling.Status
	UpdatedAt time.Time
}

type RescheduledAppointment struct {
	ID            uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	BufferEndTime time.Time
}

type ClinicalNotesView struct {
	Observations string
	Diagnosis    *string
	Treatment    *string
	FollowUp     *string
	Complete     bool
}

type AppointmentClinicalNotes struct {
	ID            uuid.UUID
	ClinicalNotes ClinicalNotesView
}

type AppointmentView struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	BufferEndTime time.Time
	Status        scheduling.Status
	Notes         *string
	ClinicalNotes *ClinicalNotesView
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type AvailableSlot struct {
	StartTime     time.Time
	EndTime       time.Time
	BufferEndTime time.Time
}

func viewOf(a *scheduling.Appointment) AppointmentView {
	slot := a.TimeSlot()
	v := AppointmentView{
		ID:            a.ID(),
		PatientID:     a.PatientID(),
		DoctorID:      a.DoctorID(),
		StartTime:     slot.StartTime(),
		EndTime:       slot.EndTime(),
		BufferEndTime: slot.BufferEndTime(),
		Status:        a.Status(),
		Notes:         a.Notes(),
		CreatedAt:     a.CreatedAt(),
		UpdatedAt:     a.UpdatedAt(),
	}
	if cn, ok := a.ClinicalNotes(); ok {
		nv := notesViewOf(cn)
		v.ClinicalNotes = &nv
	}
	return v
}

func notesViewOf(cn scheduling.ClinicalNotes) ClinicalNotesView {
	return ClinicalNotesView{
		Observations: cn.Observations(),
		Diagnosis:    cn.Diagnosis(),
		Treatment:    cn.Treatment(),
		FollowUp:     cn.FollowUp(),
		Complete:     cn.IsComplete(),
	}
}
