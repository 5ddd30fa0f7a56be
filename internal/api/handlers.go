package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var errActorMismatch = errors.New("actor_type does not match the authenticated role")

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		if !ownsPatient(GetPrincipal(r.Context()), patientID) {
			writeError(w, http.StatusForbidden, "forbidden", "patients can only book appointments for themselves")
			return
		}

		created, err := svc.CreateAppointment(r.Context(), appointment.CreateAppointmentInput{
			PatientID: patientID,
			DoctorID:  doctorID,
			StartTime: req.StartTime,
			Notes:     req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := AppointmentResponse{
			ID:            created.ID,
			PatientID:     created.PatientID,
			DoctorID:      created.DoctorID,
			StartTime:     created.StartTime,
			EndTime:       created.EndTime,
			BufferEndTime: created.BufferEndTime,
			Status:        string(created.Status),
			Notes:         created.Notes,
			CreatedAt:     created.CreatedAt,
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter appointment.ListFilter

		if v := r.URL.Query().Get("patient_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			filter.PatientID = id
		}
		if v := r.URL.Query().Get("doctor_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			filter.DoctorID = id
		}

		// patients only ever see their own appointments
		if p := GetPrincipal(r.Context()); p.Role == auth.RolePatient {
			self, err := uuid.Parse(p.Subject)
			if err != nil || (filter.PatientID != uuid.Nil && filter.PatientID != self) {
				writeError(w, http.StatusForbidden, "forbidden", "patients can only list their own appointments")
				return
			}
			filter.PatientID = self
		}

		views, err := svc.ListAppointments(r.Context(), filter)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		items := make([]AppointmentResponse, 0, len(views))
		for _, v := range views {
			items = append(items, appointmentResponse(v))
		}
		writeJSON(w, http.StatusOK, newListResponse(items))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := loadOwnedAppointment(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, appointmentResponse(*view))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := loadOwnedAppointment(w, r, svc)
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}

		res, err := svc.RescheduleAppointment(r.Context(), appointment.RescheduleAppointmentInput{
			AppointmentID: view.ID,
			NewStartTime:  req.NewStartTime,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, RescheduleResponse{
			ID:            res.ID,
			StartTime:     res.StartTime,
			EndTime:       res.EndTime,
			BufferEndTime: res.BufferEndTime,
		})
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return statusChangeHandler(svc, scheduling.Doctor, svc.ConfirmAppointment)
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return statusChangeHandler(svc, scheduling.Patient, svc.CancelAppointment)
}

func statusChangeHandler(svc *appointment.Service, fallback scheduling.Actor,
	change func(ctx context.Context, in appointment.StatusChangeInput) (*appointment.StatusChange, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := loadOwnedAppointment(w, r, svc)
		if !ok {
			return
		}

		var req StatusChangeRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}

		actor, ok := actorFor(w, r, req.ActorType, fallback)
		if !ok {
			return
		}

		res, err := change(r.Context(), appointment.StatusChangeInput{
			AppointmentID: view.ID,
			Actor:         actor,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, StatusResponse{
			ID:        res.ID,
			Status:    string(res.Status),
			UpdatedAt: res.UpdatedAt,
		})
	}
}

func addClinicalNotesHandler(svc *appointment.Service) http.HandlerFunc {
	return clinicalNotesHandler(svc, http.StatusCreated, svc.AddClinicalNotes)
}

func updateClinicalNotesHandler(svc *appointment.Service) http.HandlerFunc {
	return clinicalNotesHandler(svc, http.StatusOK, svc.UpdateClinicalNotes)
}

func clinicalNotesHandler(svc *appointment.Service, successStatus int,
	write func(ctx context.Context, in appointment.ClinicalNotesInput) (*appointment.AppointmentClinicalNotes, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := loadOwnedAppointment(w, r, svc)
		if !ok {
			return
		}

		var req ClinicalNotesRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}

		actor, ok := actorFor(w, r, req.ActorType, scheduling.Doctor)
		if !ok {
			return
		}

		res, err := write(r.Context(), appointment.ClinicalNotesInput{
			AppointmentID: view.ID,
			Actor:         actor,
			Observations:  req.Observations,
			Diagnosis:     req.Diagnosis,
			Treatment:     req.Treatment,
			FollowUp:      req.FollowUp,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, successStatus, AppointmentNotesResponse{
			ID:            res.ID,
			ClinicalNotes: notesResponse(res.ClinicalNotes),
		})
	}
}

// Helpers

func parseIDParam(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// loadOwnedAppointment resolves the {id} appointment and, for patient tokens,
// checks that it belongs to the caller.
func loadOwnedAppointment(w http.ResponseWriter, r *http.Request, svc *appointment.Service) (*appointment.AppointmentView, bool) {
	id, ok := parseIDParam(w, r, "invalid_appointment_id")
	if !ok {
		return nil, false
	}

	view, err := svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}

	if !ownsPatient(GetPrincipal(r.Context()), view.PatientID) {
		writeError(w, http.StatusForbidden, "forbidden", "appointment belongs to another patient")
		return nil, false
	}
	return view, true
}

func ownsPatient(p *auth.Principal, patientID uuid.UUID) bool {
	if p == nil || p.Role != auth.RolePatient {
		return true
	}
	return strings.EqualFold(p.Subject, patientID.String())
}

// resolveActor derives the domain actor from the token role. Admin tokens act
// as the requested actor, or fallback when none is given.
func resolveActor(p *auth.Principal, requested string, fallback scheduling.Actor) (scheduling.Actor, error) {
	var own scheduling.Actor
	switch p.Role {
	case auth.RolePatient:
		own = scheduling.Patient
	case auth.RoleDoctor:
		own = scheduling.Doctor
	default:
		if requested == "" {
			return fallback, nil
		}
		return scheduling.ParseActor(requested)
	}

	if requested != "" && !strings.EqualFold(requested, own.Role()) {
		return nil, errActorMismatch
	}
	return own, nil
}

func actorFor(w http.ResponseWriter, r *http.Request, requested string, fallback scheduling.Actor) (scheduling.Actor, bool) {
	actor, err := resolveActor(GetPrincipal(r.Context()), requested, fallback)
	if err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
		return nil, false
	}
	return actor, true
}
