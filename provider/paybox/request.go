package paybox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mstgnz/paybox/provider"
)

// Operation names are part of the signature input and fixed by the provider.
const (
	OpInitPayment = "init_payment.php"
	OpCardInit    = "card/init"
	OpCardDirect  = "card/direct"
)

const (
	defaultCurrency    = "KZT"
	defaultDescription = "Balance top-up"
	saltBytes          = 16
)

// NewSalt returns 16 random bytes, hex encoded
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("paybox: generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// FormatAmount renders an amount without trailing zeros ("500", "12.5")
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// NormalizePhone keeps digits only
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// NormalizeEmail trims and lowercases
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewOperationID derives an operation id from the clock in milliseconds.
// Two requests in the same millisecond collide; that risk is accepted.
func NewOperationID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// RequestBuilder assembles signed outbound parameter sets
type RequestBuilder struct {
	cfg Config
	now func() time.Time
}

// NewRequestBuilder creates a builder bound to merchant credentials
func NewRequestBuilder(cfg Config) *RequestBuilder {
	return &RequestBuilder{cfg: cfg, now: time.Now}
}

// NewPaymentRequest builds the signed init_payment.php parameter set
func (b *RequestBuilder) NewPaymentRequest(intent provider.PaymentIntent) (map[string]string, error) {
	if intent.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}

	orderID := intent.OperationID
	if orderID == "" {
		orderID = NewOperationID(b.now())
	}

	currency := intent.Currency
	if currency == "" {
		currency = b.cfg.currency()
	}

	params := map[string]string{
		"pg_order_id":           orderID,
		"pg_merchant_id":        b.cfg.MerchantID,
		"pg_amount":             FormatAmount(intent.Amount),
		"pg_currency":           currency,
		"pg_description":        b.cfg.description(),
		"pg_salt":               salt,
		"pg_result_url":         b.cfg.AppURL + "/payment/result",
		"pg_success_url":        b.cfg.AppURL + "/payment/success",
		"pg_failure_url":        b.cfg.AppURL + "/payment/failure",
		"pg_success_url_method": "GET",
		"pg_failure_url_method": "GET",
		"pg_request_method":     "POST",
	}
	if b.cfg.TestingMode {
		params["pg_testing_mode"] = "1"
	}
	if phone := NormalizePhone(intent.Phone); phone != "" {
		params["pg_user_phone"] = phone
	}
	if email := NormalizeEmail(intent.Email); email != "" {
		params["pg_user_contact_email"] = email
	}

	params[legacySigKey] = SignLegacy(OpInitPayment, params, b.cfg.SecretKey)
	return params, nil
}

// CardInitRequest builds the first step of a saved-card charge.
// An empty description falls back to the default top-up text.
func CardInitRequest(merchantID string, amount float64, orderID string, accountID int64, cardToken, description, secret string) (map[string]string, error) {
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"pg_merchant_id": merchantID,
		"pg_amount":      FormatAmount(amount),
		"pg_order_id":    orderID,
		"pg_user_id":     strconv.FormatInt(accountID, 10),
		"pg_card_token":  cardToken,
		"pg_description": description,
		"pg_salt":        salt,
	}
	if description == "" {
		params["pg_description"] = defaultDescription
	}
	params[legacySigKey] = SignLegacy(OpCardInit, params, secret)
	return params, nil
}

// CardDirectRequest builds the confirming step of a saved-card charge
func CardDirectRequest(merchantID, paymentID, secret string) (map[string]string, error) {
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"pg_merchant_id": merchantID,
		"pg_payment_id":  paymentID,
		"pg_salt":        salt,
	}
	params[legacySigKey] = SignLegacy(OpCardDirect, params, secret)
	return params, nil
}
