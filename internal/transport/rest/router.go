package rest

import (
	"net/http"
	"time"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/citypulse/event-service/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Cache     domain.CacheRepository
	Handler   *Handler
	Verifier  security.AccessTokenVerifier
	JWTIssuer string

	RateLimit       int
	RateLimitWindow time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Cache == nil {
		panic("rest.NewRouter: nil cache")
	}
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}
	if d.RateLimit <= 0 {
		d.RateLimit = 100
	}
	if d.RateLimitWindow <= 0 {
		d.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(HTTPLogger)

	// Panic recovery
	r.Use(middleware.Recoverer)

	// Cross-cutting
	r.Use(RateLimitMiddleware(d.Cache, d.RateLimit, d.RateLimitWindow))
	r.Use(SecurityHeaders)

	r.Route("/api/v1", func(r chi.Router) {
		// public read side
		r.Get("/events/{eventID}", d.Handler.PublicEvent)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer}))

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Post("/events", d.Handler.CreateEvent)
				r.Get("/events", d.Handler.ListMyEvents)
				r.Get("/events/{eventID}", d.Handler.GetMyEvent)
				r.Patch("/events/{eventID}", d.Handler.UpdateMyEvent)

				r.Get("/events/{eventID}/requests", d.Handler.EventRequests)
				r.Patch("/events/{eventID}/requests", d.Handler.ModerateRequests)

				r.Post("/requests", d.Handler.CreateRequest)
				r.Get("/requests", d.Handler.MyRequests)
				r.Patch("/requests/{requestID}/cancel", d.Handler.CancelRequest)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole("admin"))

				r.Get("/events", d.Handler.AdminListEvents)
				r.Patch("/events/{eventID}", d.Handler.AdminUpdateEvent)
			})
		})
	})

	return r
}
