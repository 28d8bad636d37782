package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/samirvithlani/mayaa-backend/services/common/auth"
)

const UserContextKey = "userID"

// RequireRole accepts "Authorization: Bearer <access token>" whose claims carry
// the given role. The subject is stored under UserContextKey.
func RequireRole(verifier *auth.TokenVerifier, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := verifier.ParseAndValidateToken(strings.TrimSpace(token), "access")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !auth.HasRole(claims, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		if sub, ok := claims["sub"].(string); ok {
			c.Set(UserContextKey, sub)
		}
		c.Next()
	}
}
