// README: Bearer-token auth middleware, role checks and the cron shared-secret guard.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taxifare/internal/infra"
)

const (
	ctxUID  = "auth.uid"
	ctxRole = "auth.role"
)

// Auth rejects requests without a valid bearer token.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		if !verify(c, verifier, raw) {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// OptionalAuth verifies a bearer token when one is sent and lets anonymous
// requests through. A token that fails verification is still rejected.
func OptionalAuth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		raw, ok := bearerToken(c)
		if !ok || !verify(c, verifier, raw) {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// RequireRole must run after Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// CronSecret accepts "Authorization: Bearer <secret>" or "X-Cron-Secret: <secret>".
// An empty configured secret rejects everything.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Cron-Secret")
		if raw, ok := bearerToken(c); ok {
			got = raw
		}
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// CallerUID returns the verified uid, or "" for anonymous requests.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	return raw, ok && raw != ""
}

func verify(c *gin.Context, verifier infra.TokenVerifier, raw string) bool {
	token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
	if err != nil || token == nil || token.UID == "" {
		return false
	}
	c.Set(ctxUID, token.UID)
	if role, ok := token.Claims["role"].(string); ok {
		c.Set(ctxRole, role)
	}
	return true
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
}
