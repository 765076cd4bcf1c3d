package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ledgerline/event-ticketing/internal/observability"
	"github.com/ledgerline/event-ticketing/internal/rateLimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/v1/auth/register", h.Register)
	r.Post("/v1/auth/login", h.Login)
	r.Get("/v1/events", h.ListEvents)
	r.Get("/v1/events/{id}", h.GetEvent)
	r.Get("/v1/events/{id}/pools", h.ListPools)

	r.Group(func(r chi.Router) {
		r.Use(JWTMiddleware(h.cfg.JWTSecret))
		r.Use(RateLimitMiddleware(rl))

		r.Get("/v1/me", h.Me)
		r.Patch("/v1/me", h.UpdateMe)

		r.Post("/v1/events", h.CreateEvent)
		r.Get("/v1/my/events", h.MyEvents)
		r.Patch("/v1/events/{id}", h.UpdateEvent)
		r.Delete("/v1/events/{id}", h.DeleteEvent)
		r.Post("/v1/events/{id}/pools", h.CreatePool)
		r.Patch("/v1/pools/{id}", h.UpdatePool)
		r.Get("/v1/events/{id}/bookings", h.EventBookings)

		r.With(IdempotencyKeyRequired).Post("/v1/pools/{id}/bookings", h.CreateBooking)
		r.Patch("/v1/bookings/{id}", h.UpdateBooking)
		r.Delete("/v1/bookings/{id}", h.CancelBooking)
		r.Get("/v1/my/bookings", h.MyBookings)
	})

	return r
}
