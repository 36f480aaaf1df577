package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "b8a3c2267dc85f855dea9b46b452bf20"

func TestNewTokenGenerator(t *testing.T) {
	tg := NewTokenGenerator("test-secret-key", time.Hour, 7*24*time.Hour)

	assert.NotNil(t, tg)
	assert.Equal(t, "test-secret-key", tg.secret)
	assert.Equal(t, time.Hour, tg.AccessTokenExpiry())
	assert.Equal(t, 7*24*time.Hour, tg.RefreshTokenExpiry())
}

func TestTokenGenerator_GenerateTokens(t *testing.T) {
	tg := NewTokenGenerator(testSecret, time.Hour, 7*24*time.Hour)

	t.Run("access token carries user and role", func(t *testing.T) {
		accessToken, refreshToken, err := tg.GenerateTokens(42, 2)
		require.NoError(t, err)
		assert.NotEqual(t, accessToken, refreshToken)

		userID, role, err := tg.ValidateAccessToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, 42, userID)
		assert.Equal(t, 2, role)
	})

	t.Run("refresh tokens are unique", func(t *testing.T) {
		_, first, err := tg.GenerateTokens(1, 1)
		require.NoError(t, err)
		_, second, err := tg.GenerateTokens(1, 1)
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		assert.NoError(t, tg.ValidateRefreshToken(first))
	})
}

func TestTokenGenerator_ValidateAccessToken(t *testing.T) {
	tg := NewTokenGenerator(testSecret, time.Hour, time.Hour)
	_, refreshToken, err := tg.GenerateTokens(1, 1)
	require.NoError(t, err)

	expired := NewTokenGenerator(testSecret, -time.Minute, time.Hour)
	expiredToken, _, err := expired.GenerateTokens(1, 1)
	require.NoError(t, err)

	other := NewTokenGenerator("other-secret", time.Hour, time.Hour)
	foreignToken, _, err := other.GenerateTokens(1, 1)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": 1,
		"role":    2,
		"type":    "access",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	missingRole, err := tg.sign(jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(time.Hour).Unix(),
		"type":    "access",
	})
	require.NoError(t, err)

	tests := []struct {
		name          string
		token         string
		errorContains string
	}{
		{name: "refresh token rejected", token: refreshToken, errorContains: "token type is not access"},
		{name: "expired", token: expiredToken, errorContains: "failed to parse token"},
		{name: "wrong secret", token: foreignToken, errorContains: "failed to parse token"},
		{name: "none algorithm", token: noneToken, errorContains: "failed to parse token"},
		{name: "missing role", token: missingRole, errorContains: "role not found"},
		{name: "garbage", token: "not-a-jwt", errorContains: "failed to parse token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tg.ValidateAccessToken(tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestTokenGenerator_ValidateRefreshToken(t *testing.T) {
	tg := NewTokenGenerator(testSecret, time.Hour, time.Hour)
	accessToken, refreshToken, err := tg.GenerateTokens(5, 1)
	require.NoError(t, err)

	assert.NoError(t, tg.ValidateRefreshToken(refreshToken))

	err = tg.ValidateRefreshToken(accessToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token type is not refresh")
}
