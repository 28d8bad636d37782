package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndValidateToken(t *testing.T) {
	v := NewTokenVerifier("top-secret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"typ": "access",
		"sub": "admin-1",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("top-secret"))
	require.NoError(t, err)

	claims, err := v.ParseAndValidateToken(tok, "access")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims["sub"])

	_, err = v.ParseAndValidateToken(tok, "refresh")
	assert.Error(t, err)
}

func TestVerifierWithoutSecret(t *testing.T) {
	_, err := NewTokenVerifier("  ").ParseAndValidateToken("x.y.z", "")
	assert.True(t, errors.Is(err, ErrSecretNotConfigured))
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(jwt.MapClaims{"role": "Admin"}, "admin"))
	assert.True(t, HasRole(jwt.MapClaims{"roles": []interface{}{"staff", "admin"}}, "admin"))
	assert.False(t, HasRole(jwt.MapClaims{"roles": []interface{}{"staff"}}, "admin"))
	assert.False(t, HasRole(jwt.MapClaims{}, "admin"))
}
