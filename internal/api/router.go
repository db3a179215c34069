package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service  *appointment.Service
	Auth     *Authenticator
	PgPool   *pgxpool.Pool // optional
	Redis    *redis.Client // optional
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	auth := cfg.Auth
	if auth == nil {
		auth = NewAuthenticator("")
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := &handlers{svc: cfg.Service, logger: logger}

	// Public catalogue
	r.Get("/doctors", h.listDoctors)
	r.Get("/doctors/{id}/slots", h.getAvailableSlots)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(auth))

		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments", h.listAppointments)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Post("/appointments/{id}/complete", h.completeAppointment)
		r.Post("/appointments/{id}/reschedule", h.rescheduleAppointment)
		r.Delete("/appointments/{id}", h.deleteAppointment)

		r.Get("/patients/{id}/appointments", h.listPatientAppointments)
		r.Get("/doctors/{id}/appointments", h.getDoctorAppointments)
	})

	return r
}
