package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/salon-booking-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/salon-booking-assistant/internal/http/middleware"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	LineWebhook     http.HandlerFunc
	Health          http.Handler
	MetricsHandler  http.Handler
	AdminBookings   *handlers.AdminBookingsHandler
	AdminAuthSecret string
	// AdminRateLimit throttles the admin API per client IP. Nil disables it.
	AdminRateLimit *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Method(http.MethodGet, "/health", cfg.Health)
		} else {
			public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			})
		}
		if cfg.LineWebhook != nil {
			public.Post("/webhooks/line", cfg.LineWebhook)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin routes (HMAC JWT)
	if cfg.AdminAuthSecret != "" && cfg.AdminBookings != nil {
		r.Route("/admin", func(admin chi.Router) {
			if cfg.AdminRateLimit != nil {
				admin.Use(cfg.AdminRateLimit.Middleware)
			}
			admin.Use(middleware.Compress(5))
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			admin.Get("/bookings", cfg.AdminBookings.ListBookings)
			admin.Delete("/bookings/{userID}", cfg.AdminBookings.CancelBooking)
			admin.Get("/staff/{staffID}/availability", cfg.AdminBookings.StaffAvailability)
			admin.Get("/audit", cfg.AdminBookings.AuditEvents)
		})
	}

	return r
}
