package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/driving-lesson-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	Checks  []ReadyCheck
	Logger  *slog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(IdentityMiddleware)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{svc: cfg.Service, logger: logger}

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.createAppointment)
		r.Get("/", h.listAppointments)
		r.Get("/availability", h.checkAvailability)
	})

	r.Route("/students/{id}/appointments", func(r chi.Router) {
		r.Get("/", h.studentAppointments)
		r.Get("/upcoming", h.studentUpcoming)
	})

	r.Route("/teachers/{id}", func(r chi.Router) {
		r.Get("/appointments", h.teacherAppointments)
		r.Get("/appointments/upcoming", h.teacherUpcoming)
		r.Get("/students", h.teacherStudents)
	})

	return r
}
