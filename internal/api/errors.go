package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

var kindStatus = map[scheduling.Kind]int{
	scheduling.KindNotFound:             http.StatusNotFound,
	scheduling.KindForbidden:            http.StatusForbidden,
	scheduling.KindSlotConflict:         http.StatusConflict,
	scheduling.KindAlreadyExists:        http.StatusConflict,
	scheduling.KindInvalidTransition:    http.StatusConflict,
	scheduling.KindLeadTimeViolation:    http.StatusUnprocessableEntity,
	scheduling.KindInvalidTimeSlot:      http.StatusBadRequest,
	scheduling.KindOutsideWorkingHours:  http.StatusBadRequest,
	scheduling.KindInvalidClinicalNotes: http.StatusBadRequest,
	scheduling.KindInvalidStatus:        http.StatusBadRequest,
}

// writeServiceError maps a use case error to its HTTP response. Infrastructure
// failures are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, appointment.ErrScheduleBusy) {
		writeError(w, http.StatusConflict, "schedule_busy", err.Error())
		return
	}

	var de *scheduling.Error
	if errors.As(err, &de) {
		status, ok := kindStatus[de.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		writeError(w, status, string(de.Kind), de.Error())
		return
	}

	loggerFrom(r.Context()).WithError(err).Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
}
