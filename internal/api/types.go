package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// Requests

type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	StartTime string `json:"start_time" validate:"required"`
	Notes     string `json:"notes" validate:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	NewStartTime string `json:"new_start_time" validate:"required"`
}

type StatusChangeRequest struct {
	ActorType string `json:"actor_type" validate:"omitempty,oneof=PATIENT DOCTOR"`
}

type ClinicalNotesRequest struct {
	ActorType    string  `json:"actor_type" validate:"omitempty,oneof=PATIENT DOCTOR"`
	Observations string  `json:"observations"`
	Diagnosis    *string `json:"diagnosis"`
	Treatment    *string `json:"treatment"`
	FollowUp     *string `json:"follow_up"`
}

type CreatePatientRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Age       int     `json:"age" validate:"gte=0,lte=150"`
	Gender    string  `json:"gender" validate:"required,oneof=MALE FEMALE"`
	Address   string  `json:"address" validate:"max=500"`
	Phone     string  `json:"phone" validate:"max=30"`
	Email     string  `json:"email" validate:"required,email"`
	Allergies *string `json:"allergies"`
}

type CreateDoctorRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Specialty     string `json:"specialty" validate:"required,max=100"`
	LicenseNumber string `json:"license_number" validate:"required,max=50"`
	Phone         string `json:"phone" validate:"max=30"`
	Email         string `json:"email" validate:"required,email"`
}

// Responses

type ClinicalNotesResponse struct {
	Observations string  `json:"observations"`
	Diagnosis    *string `json:"diagnosis"`
	Treatment    *string `json:"treatment"`
	FollowUp     *string `json:"follow_up"`
	Complete     bool    `json:"complete"`
}

type AppointmentResponse struct {
	ID            uuid.UUID              `json:"id"`
	PatientID     uuid.UUID              `json:"patient_id"`
	DoctorID      uuid.UUID              `json:"doctor_id"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       time.Time              `json:"end_time"`
	BufferEndTime time.Time              `json:"buffer_end_time"`
	Status        string                 `json:"status"`
	Notes         *string                `json:"notes"`
	ClinicalNotes *ClinicalNotesResponse `json:"clinical_notes,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     *time.Time             `json:"updated_at,omitempty"`
}

type StatusResponse struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RescheduleResponse struct {
	ID            uuid.UUID `json:"id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	BufferEndTime time.Time `json:"buffer_end_time"`
}

type AppointmentNotesResponse struct {
	ID            uuid.UUID             `json:"id"`
	ClinicalNotes ClinicalNotesResponse `json:"clinical_notes"`
}

type SlotResponse struct {
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	BufferEndTime time.Time `json:"buffer_end_time"`
}

type PatientResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Allergies *string   `json:"allergies"`
	CreatedAt time.Time `json:"created_at"`
}

type DoctorResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Specialty     string    `json:"specialty"`
	LicenseNumber string    `json:"license_number"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func newListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

func notesResponse(v appointment.ClinicalNotesView) ClinicalNotesResponse {
	return ClinicalNotesResponse{
		Observations: v.Observations,
		Diagnosis:    v.Diagnosis,
		Treatment:    v.Treatment,
		FollowUp:     v.FollowUp,
		Complete:     v.Complete,
	}
}

func appointmentResponse(v appointment.AppointmentView) AppointmentResponse {
	updated := v.UpdatedAt
	resp := AppointmentResponse{
		ID:            v.ID,
		PatientID:     v.PatientID,
		DoctorID:      v.DoctorID,
		StartTime:     v.StartTime,
		EndTime:       v.EndTime,
		BufferEndTime: v.BufferEndTime,
		Status:        string(v.Status),
		Notes:         v.Notes,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     &updated,
	}
	if v.ClinicalNotes != nil {
		n := notesResponse(*v.ClinicalNotes)
		resp.ClinicalNotes = &n
	}
	return resp
}

func patientResponse(p appointment.Patient) PatientResponse {
	return PatientResponse{
		ID:        p.ID,
		Name:      p.Name,
		Age:       p.Age,
		Gender:    string(p.Gender),
		Address:   p.Address,
		Phone:     p.Phone,
		Email:     p.Email,
		Allergies: p.Allergies,
		CreatedAt: p.CreatedAt,
	}
}

func doctorResponse(d appointment.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:            d.ID,
		Name:          d.Name,
		Specialty:     d.Specialty,
		LicenseNumber: d.LicenseNumber,
		Phone:         d.Phone,
		Email:         d.Email,
		Active:        d.Active,
		CreatedAt:     d.CreatedAt,
	}
}
