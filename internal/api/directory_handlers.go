package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const dateLayout = "2006-01-02"

func createPatientHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}

		p, err := svc.RegisterPatient(r.Context(), appointment.NewPatientInput{
			Name:      req.Name,
			Age:       req.Age,
			Gender:    appointment.Gender(req.Gender),
			Address:   req.Address,
			Phone:     req.Phone,
			Email:     req.Email,
			Allergies: req.Allergies,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, patientResponse(*p))
	}
}

func listPatientsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patients, err := svc.ListPatients(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		items := make([]PatientResponse, 0, len(patients))
		for _, p := range patients {
			items = append(items, patientResponse(p))
		}
		writeJSON(w, http.StatusOK, newListResponse(items))
	}
}

func getPatientHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_patient_id")
		if !ok {
			return
		}

		if !ownsPatient(GetPrincipal(r.Context()), id) {
			writeError(w, http.StatusForbidden, "forbidden", "patients can only view their own record")
			return
		}

		p, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, patientResponse(*p))
	}
}

func createDoctorHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}

		d, err := svc.RegisterDoctor(r.Context(), appointment.NewDoctorInput{
			Name:          req.Name,
			Specialty:     req.Specialty,
			LicenseNumber: req.LicenseNumber,
			Phone:         req.Phone,
			Email:         req.Email,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, doctorResponse(*d))
	}
}

func listDoctorsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		items := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			items = append(items, doctorResponse(d))
		}
		writeJSON(w, http.StatusOK, newListResponse(items))
	}
}

func getDoctorHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_doctor_id")
		if !ok {
			return
		}

		d, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doctorResponse(*d))
	}
}

// doctorAvailabilityHandler serves GET /doctors/{id}/availability?date=YYYY-MM-DD.
// The date is a calendar day in the clinic's time zone.
func doctorAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_doctor_id")
		if !ok {
			return
		}

		day, err := time.Parse(dateLayout, strings.TrimSpace(r.URL.Query().Get("date")))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
			return
		}

		slots, err := svc.DoctorAvailability(r.Context(), id, day)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		items := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			items = append(items, SlotResponse{
				StartTime:     s.StartTime,
				EndTime:       s.EndTime,
				BufferEndTime: s.BufferEndTime,
			})
		}
		writeJSON(w, http.StatusOK, newListResponse(items))
	}
}
