// Package provider holds the provider-neutral pieces of the gateway: the
// account, order and callback types, the store interfaces the payment flows
// depend on, the payment event trail and the form-posting HTTP client.
//
// # Stores
//
// AccountStore and OrderStore are implemented by infra/storage for sqlite
// and postgres. CallbackLedger is implemented by the same storage (an
// applied_callbacks table) and by infra/dedup on Redis:
//
//	claimed, err := ledger.Claim(ctx, "callback:123", paymentID)
//	if !claimed {
//	    // already applied, acknowledge without crediting
//	}
//
// Claim must be atomic; exactly one concurrent caller for a key wins.
//
// # Event trail
//
// Every provider exchange and callback becomes an Event. Sinks implement
// EventLogger and can be combined:
//
//	events := provider.MultiEventLogger{
//	    provider.NewDBEventLogger(db, conn.DriverSQLite),
//	    opensearch.NewEventLogger(osClient),
//	}
//
// Both sinks also implement EventReader for lookups by operation id.
//
// # HTTP client
//
// ProviderHTTPClient posts application/x-www-form-urlencoded bodies and
// returns a *StatusError for non-2xx answers:
//
//	client := provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(baseURL, 20*time.Second))
//	resp, err := client.SendForm(ctx, &provider.HTTPRequest{Endpoint: "/init_payment.php", FormData: params})
package provider
