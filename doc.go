// Package paybox is a balance top-up gateway in front of the Paybox
// (FreedomPay) payment provider.
//
// # Overview
//
// Accounts top up their balance through a hosted payment page or by
// charging a card saved during an earlier payment:
//
//	┌──────────────┐    ┌──────────────┐    ┌──────────────┐
//	│   Merchant   │───►│    paybox    │───►│    Paybox    │
//	│   frontend   │◄───│   gateway    │◄───│   provider   │
//	└──────────────┘    └──────────────┘    └──────────────┘
//	   /v1 API (JWT)      /payment/* callbacks and redirects
//
// # Layout
//
//   - provider: shared types, store interfaces, event trail, HTTP client
//   - provider/paybox: signatures, request building, callback reconciliation, saved-card charges
//   - infra/storage: sqlite and postgres persistence
//   - infra/dedup: Redis callback ledger
//   - infra/opensearch: payment event index
//   - infra/metrics: Prometheus collectors
//   - handler, router: HTTP surface
//   - cmd: the server binary
//
// # Configuration
//
// Everything is read from the environment (or a .env file):
//
//	PAYBOX_MERCHANT_ID=552170
//	PAYBOX_SECRET_KEY=...
//	APP_URL=https://pay.example.com
//	FRONTEND_URL=https://shop.example.com
//	JWT_SECRET=...
//	DB_DRIVER=sqlite
//	REDIS_ADDR=localhost:6379
//
// A token for the merchant API is issued with:
//
//	go run ./cmd -issue-token 42
package paybox
