// Package paybox integrates the Paybox (FreedomPay) payment gateway.
//
// Requests and callbacks are authenticated with an MD5 signature over the
// values of a parameter set, sorted by key and joined with ";". Two schemes
// exist and are not interchangeable:
//
//	legacy: md5(op;v1;...;vn;secret)  flat pg_* form fields, pg_sig
//	modern: md5(v1;...;vn;secret)     JSON payload, nested objects as compact JSON, sig
//
// The legacy operation name is the script being called: "init_payment.php",
// "card/init", "card/direct", or the last path segment of the callback URL.
//
// Service ties the flows together:
//
//   - CreatePayment builds and sends init_payment.php and stores a pending order
//   - HandleCallback verifies a callback, credits the payer at most once and
//     returns the acknowledgement the provider expects
//   - Charge runs the card/init then card/direct saved-card charge
//
// Failures are reported with the sentinels in errors.go; provider messages
// travel in *ProviderError and can be read with ProviderMessage.
package paybox
