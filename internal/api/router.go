package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

type RouterConfig struct {
	Service *appointment.Service
	Issuer  *auth.Issuer
	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger
	Health  []Dependency
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Recoverer)

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.Health, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", cfg.Metrics.Handler())

	svc := cfg.Service

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Issuer))

		// Appointment endpoints
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(svc))
			r.Get("/", listAppointmentsHandler(svc))
			r.Get("/{id}", getAppointmentHandler(svc))
			r.Put("/{id}", rescheduleAppointmentHandler(svc))
			r.Post("/{id}/confirm", confirmAppointmentHandler(svc))
			r.Post("/{id}/cancel", cancelAppointmentHandler(svc))
			r.Post("/{id}/clinical-notes", addClinicalNotesHandler(svc))
			r.Put("/{id}/clinical-notes", updateClinicalNotesHandler(svc))
		})

		// Directory endpoints
		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", listDoctorsHandler(svc))
			r.With(RequireRole(auth.RoleAdmin)).Post("/", createDoctorHandler(svc))
			r.Get("/{id}", getDoctorHandler(svc))
			r.Get("/{id}/availability", doctorAvailabilityHandler(svc))
		})

		r.Route("/patients", func(r chi.Router) {
			staff := RequireRole(auth.RoleDoctor, auth.RoleAdmin)
			r.With(staff).Get("/", listPatientsHandler(svc))
			r.With(staff).Post("/", createPatientHandler(svc))
			r.Get("/{id}", getPatientHandler(svc))
		})
	})

	return r
}
