package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// ErrSecretNotConfigured is returned when a verifier has no signing secret.
var ErrSecretNotConfigured = errors.New("JWT secret not configured")

// TokenVerifier validates HMAC-signed access tokens issued by auth-service.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenVerifier{}
	}
	return &TokenVerifier{secret: []byte(secret)}
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func (v *TokenVerifier) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if len(v.secret) == 0 {
		return nil, ErrSecretNotConfigured
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

// HasRole reports whether claims carry role either as "role" or inside "roles".
func HasRole(claims jwt.MapClaims, role string) bool {
	if r, ok := claims["role"].(string); ok && strings.EqualFold(r, role) {
		return true
	}
	if list, ok := claims["roles"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && strings.EqualFold(s, role) {
				return true
			}
		}
	}
	return false
}
