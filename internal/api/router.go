package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/idcodec"
)

type RouterConfig struct {
	Logger         *zap.Logger
	IDs            idcodec.Codec
	Health         *HealthHandler
	Metrics        http.Handler    // served at /metrics when set
	Recorder       RequestRecorder // optional
	AllowedOrigins []string
}

type SchedulingRouterConfig struct {
	RouterConfig
	Service SchedulingService
}

type RatingsRouterConfig struct {
	RouterConfig
	Service SurveyService
}

func newBaseRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Recorder))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", UserIDHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	return r
}

func NewSchedulingRouter(cfg SchedulingRouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := newBaseRouter(cfg.RouterConfig)
	h := &schedulingHandler{svc: cfg.Service, ids: cfg.IDs, log: cfg.Logger}

	// Doctor endpoints
	r.Post("/doctors", h.createDoctor)
	r.Get("/doctors", h.listDoctors)
	r.Get("/doctors/{id}", h.getDoctor)
	r.Get("/specialties", h.listSpecialties)

	// Timeslot endpoints
	r.Post("/timeslots", h.createTimeslots)
	r.Get("/timeslots", h.listFreeTimeslots)
	r.Get("/timeslots/doctor/{id}", h.listDoctorTimeslots)

	// Appointment endpoints
	r.Post("/appointments", h.createAppointment)
	r.Get("/appointments", h.listAppointments)
	r.Get("/appointments/mine", h.listMyAppointments)
	r.Get("/appointments/{id}", h.getAppointment)
	r.Post("/appointments/{id}/cancel", h.cancelAppointment)

	return r
}

func NewRatingsRouter(cfg RatingsRouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := newBaseRouter(cfg.RouterConfig)
	h := &ratingsHandler{svc: cfg.Service, ids: cfg.IDs, log: cfg.Logger}

	r.Get("/surveys", h.listSurveys)
	r.Post("/surveys/submit", h.submitSurvey)
	r.Get("/surveys/{appointmentId}", h.getSurvey)

	return r
}

// NewWorkerRouter serves only the health probes and /metrics, for processes
// without a public API.
func NewWorkerRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return newBaseRouter(cfg)
}
