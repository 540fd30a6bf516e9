package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTService(t *testing.T) {
	_, err := NewJWTService("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)

	svc, err := NewJWTService("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, svc.expiry)
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService("secret", time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AccountID)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWTService_ValidateToken(t *testing.T) {
	svc, err := NewJWTService("secret", time.Hour)
	require.NoError(t, err)

	other, err := NewJWTService("other", time.Hour)
	require.NoError(t, err)
	foreign, err := other.GenerateToken(42)
	require.NoError(t, err)

	expired, err := (&JWTService{secretKey: []byte("secret"), expiry: -time.Minute}).GenerateToken(42)
	require.NoError(t, err)

	noAccount, err := svc.GenerateToken(0)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{AccountID: 42}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong_secret", foreign, ErrInvalidToken},
		{"expired", expired, ErrExpiredToken},
		{"missing_account", noAccount, ErrMissingAccount},
		{"alg_none", none, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
