package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mstgnz/paybox/handler"
	"github.com/mstgnz/paybox/infra/middle"
	v1 "github.com/mstgnz/paybox/router/v1"
)

// Deps are the collaborators the routes are built from
type Deps struct {
	Payments *handler.PaymentHandler
	Events   *handler.EventsHandler
	Health   *handler.HealthHandler
	Tokens   middle.TokenValidator
	Metrics  http.Handler

	// RateLimiter throttles the API group; nil disables limiting
	RateLimiter *middle.RateLimiter
}

// Routes mounts the public provider routes and the authenticated /v1 API.
// Provider routes answer every request with a protocol ack or a redirect,
// so they skip the API's rate limiter and content-type checks.
func Routes(r chi.Router, deps Deps) {
	// Called by the provider and the payer's browser, no API auth
	r.Route("/payment", func(r chi.Router) {
		r.Use(middle.BodyLimitMiddleware())
		r.Get("/success", deps.Payments.PaymentSuccess)
		r.Get("/failure", deps.Payments.PaymentFailure)
		r.Post("/{script}", deps.Payments.HandleCallback)
	})

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(middle.RateLimitMiddleware(deps.RateLimiter))
		}
		r.Use(middle.RequestValidationMiddleware())

		if deps.Health != nil {
			r.Get("/health", deps.Health.CheckHealth)
		}
		if deps.Metrics != nil {
			r.Handle("/metrics", deps.Metrics)
		}

		r.Route("/v1", func(r chi.Router) {
			r.Use(middle.AuthMiddleware(deps.Tokens))
			v1.Routes(r, deps.Payments, deps.Events)
		})
	})
}
