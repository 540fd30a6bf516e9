package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		envVars   map[string]string
		expectErr error
		check     func(t *testing.T, cfg *AppConfig)
	}{
		{
			name: "defaults",
			envVars: map[string]string{
				"PAYBOX_MERCHANT_ID": "552170",
				"PAYBOX_SECRET_KEY":  "secret",
			},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "9999", cfg.Port)
				assert.Equal(t, "KZT", cfg.Currency)
				assert.Equal(t, "https://api.freedompay.kz", cfg.APIURL)
				assert.Equal(t, 20*time.Second, cfg.ProviderTimeout)
				assert.Equal(t, "sqlite", cfg.DBDriver)
				assert.False(t, cfg.ModernCallbackCredit)
				assert.False(t, cfg.IsProduction())
			},
		},
		{
			name: "overrides",
			envVars: map[string]string{
				"PAYBOX_MERCHANT_ID":     " 552170 ",
				"PAYBOX_SECRET_KEY":      "secret",
				"PAYBOX_API_URL":         "https://sandbox.example.com/",
				"FRONTEND_URL":           "https://shop.example.com/",
				"PROVIDER_TIMEOUT":       "15",
				"MODERN_CALLBACK_CREDIT": "true",
				"ENVIRONMENT":            "production",
				"REDIS_DB":               "3",
			},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "552170", cfg.MerchantID)
				assert.Equal(t, "https://sandbox.example.com", cfg.APIURL)
				assert.Equal(t, "https://shop.example.com", cfg.FrontendURL)
				assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
				assert.True(t, cfg.ModernCallbackCredit)
				assert.True(t, cfg.IsProduction())
				assert.Equal(t, 3, cfg.RedisDB)
			},
		},
		{
			name: "missing_secret",
			envVars: map[string]string{
				"PAYBOX_MERCHANT_ID": "552170",
			},
			expectErr: ErrMissingSecret,
		},
		{
			name: "missing_merchant",
			envVars: map[string]string{
				"PAYBOX_SECRET_KEY": "secret",
			},
			expectErr: ErrMissingMerchant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PAYBOX_MERCHANT_ID", "")
			t.Setenv("PAYBOX_SECRET_KEY", "")
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestGetDurationEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"empty", "", 5 * time.Second},
		{"duration_string", "250ms", 250 * time.Millisecond},
		{"seconds", "30", 30 * time.Second},
		{"invalid", "soon", 5 * time.Second},
		{"negative", "-3s", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.expected, GetDurationEnv("TEST_DURATION", 5*time.Second))
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL", "not-a-bool")
	assert.True(t, GetBoolEnv("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "false")
	assert.False(t, GetBoolEnv("TEST_BOOL", true))
}
