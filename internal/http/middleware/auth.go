// README: Firebase bearer-token auth middleware.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetops/internal/infra"
)

// Auth verifies the Firebase ID token from the Authorization header and
// stashes the caller's uid in the gin context. A nil verifier disables auth
// entirely, which is only meant for local development.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("uid", token.UID)
		if token.Role != "" {
			c.Set("role", token.Role)
		}
		c.Next()
	}
}

// CallerUID returns the authenticated uid, or "" when auth is disabled.
func CallerUID(c *gin.Context) string {
	v, _ := c.Get("uid")
	s, _ := v.(string)
	return s
}

// CallerRole returns the role custom claim, or "".
func CallerRole(c *gin.Context) string {
	v, _ := c.Get("role")
	s, _ := v.(string)
	return s
}

// RequireRole gates a route group on the role custom claim.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := c.Get("role")
		if ok && got == role {
			c.Next()
			return
		}
		// No verifier configured means no roles either; let it through.
		if _, authed := c.Get("uid"); !authed {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
