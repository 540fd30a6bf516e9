package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSecret   = errors.New("config: PAYBOX_SECRET_KEY is required")
	ErrMissingMerchant = errors.New("config: PAYBOX_MERCHANT_ID is required")
)

// AppConfig represents the application configuration.
// It is built once at startup and never mutated afterwards.
type AppConfig struct {
	Port        string
	Environment string

	// Provider credentials and endpoints
	MerchantID      string
	SecretKey       string
	APIURL          string
	AppURL          string
	FrontendURL     string
	Currency        string
	Description     string
	TestingMode     bool
	ProviderTimeout time.Duration

	// Modern-format callbacks only acknowledge by default
	ModernCallbackCredit bool

	// Storage
	DBDriver string
	DBPath   string

	// Callback ledger
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ClaimTTL      time.Duration

	// Event log
	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	EnableLogging  bool

	JWTSecret          string
	RateLimitPerMinute int
}

// Load reads the configuration from the environment.
// A missing secret or merchant id is an error: signing with empty credentials
// would produce signatures the provider rejects.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:                 GetEnv("APP_PORT", "9999"),
		Environment:          GetEnv("ENVIRONMENT", "development"),
		MerchantID:           strings.TrimSpace(os.Getenv("PAYBOX_MERCHANT_ID")),
		SecretKey:            os.Getenv("PAYBOX_SECRET_KEY"),
		APIURL:               strings.TrimRight(GetEnv("PAYBOX_API_URL", "https://api.freedompay.kz"), "/"),
		AppURL:               strings.TrimRight(GetEnv("APP_URL", "http://localhost:9999"), "/"),
		FrontendURL:          strings.TrimRight(GetEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		Currency:             GetEnv("PAYBOX_CURRENCY", "KZT"),
		Description:          GetEnv("PAYBOX_DESCRIPTION", "Balance top-up"),
		TestingMode:          GetBoolEnv("PAYBOX_TESTING_MODE", false),
		ProviderTimeout:      GetDurationEnv("PROVIDER_TIMEOUT", 20*time.Second),
		ModernCallbackCredit: GetBoolEnv("MODERN_CALLBACK_CREDIT", false),
		DBDriver:             GetEnv("DB_DRIVER", "sqlite"),
		DBPath:               GetEnv("DB_PATH", "data/paybox.db"),
		RedisAddr:            GetEnv("REDIS_ADDR", ""),
		RedisPassword:        GetEnv("REDIS_PASSWORD", ""),
		RedisDB:              GetIntEnv("REDIS_DB", 0),
		ClaimTTL:             GetDurationEnv("CALLBACK_CLAIM_TTL", 30*24*time.Hour),
		OpenSearchURL:        GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser:       GetEnv("OPENSEARCH_USER", ""),
		OpenSearchPass:       GetEnv("OPENSEARCH_PASSWORD", ""),
		EnableLogging:        GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
		JWTSecret:            GetEnv("JWT_SECRET", ""),
		RateLimitPerMinute:   GetIntEnv("RATE_LIMIT_PER_MINUTE", 100),
	}

	if cfg.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	if cfg.MerchantID == "" {
		return nil, ErrMissingMerchant
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDurationEnv accepts Go duration strings ("20s") or a plain number of seconds.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
