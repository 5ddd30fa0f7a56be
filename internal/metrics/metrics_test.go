package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "slot_conflict", Outcome(scheduling.NewError(scheduling.KindSlotConflict, "taken")))
	assert.Equal(t, "error", Outcome(errors.New("db down")))
}

func TestRecordOperation(t *testing.T) {
	m := New()

	m.RecordOperation("create", nil)
	m.RecordOperation("create", nil)
	m.RecordOperation("create", scheduling.NewError(scheduling.KindOutsideWorkingHours, "closed"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("create", "outside_working_hours")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/appointments", 200, time.Millisecond)
		m.RecordOperation("confirm", nil)
		m.RecordPublished("APPOINTMENT_CREATED", nil)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/appointments", 201, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinic_scheduling_http_requests_total{method="POST",route="/appointments",status_code="201"} 1`)
}
