package paybox

import (
	"strings"
	"time"

	"github.com/mstgnz/paybox/infra/config"
)

const defaultTimeout = 20 * time.Second

// Config holds the merchant credentials and endpoints.
// It is read-only once constructed.
type Config struct {
	MerchantID           string
	SecretKey            string
	APIURL               string
	AppURL               string
	FrontendURL          string
	Currency             string
	Description          string
	TestingMode          bool
	Timeout              time.Duration
	ModernCallbackCredit bool
}

// ConfigFromApp copies the gateway settings out of the application config
func ConfigFromApp(app *config.AppConfig) Config {
	return Config{
		MerchantID:           app.MerchantID,
		SecretKey:            app.SecretKey,
		APIURL:               app.APIURL,
		AppURL:               app.AppURL,
		FrontendURL:          app.FrontendURL,
		Currency:             app.Currency,
		Description:          app.Description,
		TestingMode:          app.TestingMode,
		Timeout:              app.ProviderTimeout,
		ModernCallbackCredit: app.ModernCallbackCredit,
	}
}

// Validate rejects configurations that would sign with empty credentials
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return config.ErrMissingSecret
	}
	if strings.TrimSpace(c.MerchantID) == "" {
		return config.ErrMissingMerchant
	}
	return nil
}

func (c Config) currency() string {
	if c.Currency == "" {
		return defaultCurrency
	}
	return c.Currency
}

func (c Config) description() string {
	if c.Description == "" {
		return defaultDescription
	}
	return c.Description
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}
