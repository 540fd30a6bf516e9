package v1

import (
	"github.com/go-chi/chi/v5"

	"github.com/mstgnz/paybox/handler"
)

// Routes registers the merchant API routes. eventsHandler may be nil.
func Routes(r chi.Router, paymentHandler *handler.PaymentHandler, eventsHandler *handler.EventsHandler) {
	r.Post("/payments", paymentHandler.CreatePayment)

	r.Route("/cards", func(r chi.Router) {
		r.Post("/charge", paymentHandler.ChargeSavedCard)
		r.Delete("/", paymentHandler.DeleteCard)
	})

	r.Get("/account", paymentHandler.GetAccount)

	if eventsHandler != nil {
		r.Get("/payments/{operationId}/events", eventsHandler.OperationEvents)
		r.Get("/events/failures", eventsHandler.RecentFailures)
	}
}
