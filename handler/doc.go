// Package handler provides the HTTP handlers of the paybox gateway.
//
// PaymentHandler serves two audiences. Merchant API calls under /v1 are
// authenticated with a JWT that carries the account id:
//
//	POST   /v1/payments       start a hosted top-up payment
//	POST   /v1/cards/charge   charge the saved card
//	DELETE /v1/cards          forget the saved card
//	GET    /v1/account        balance and masked card
//
// EventsHandler exposes the payment event trail of the same account:
//
//	GET /v1/payments/{operationId}/events   every exchange of one operation
//	GET /v1/events/failures?hours=24        recent failed exchanges
//
// The provider itself talks to the unauthenticated /payment routes:
//
//	POST /payment/{script}    server-to-server result callback
//	GET  /payment/success     browser redirect after payment
//	GET  /payment/failure     browser redirect after a declined payment
//
// Callback responses are never JSON-wrapped: the body the provider expects
// (signed XML or {"status": ...}) is written as is.
//
// Gateway errors map to HTTP statuses as follows:
//
//	invalid amount             400
//	account not found          404
//	no card on file            409
//	charge declined            402
//	initiation/protocol/network 502
//	anything else              500
//
// HealthHandler pings the database and, when configured, the Redis callback ledger.
package handler
