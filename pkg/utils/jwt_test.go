package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "rexi")

	token, err := m.GenerateAccessToken("scope-1", time.Hour)
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "scope-1", claims.ScopeID)
	assert.Equal(t, "rexi", claims.Issuer)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", "rexi")
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateAccessToken("", time.Hour)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	token, err := NewJWTManager("a", "rexi").GenerateAccessToken("", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTManager("b", "rexi").ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
