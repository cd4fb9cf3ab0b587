package http

import (
	"net/http"
	"strings"

	"github.com/licensegate/licensegate/internal/ratelimit"
	"github.com/licensegate/licensegate/internal/security"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware gates admin routes behind a bearer token checked
// against a bcrypt hash from config. An empty hash rejects every request.
func AdminAuthMiddleware(tokenHash string) gin.HandlerFunc {
	tokenHash = strings.TrimSpace(tokenHash)
	return func(c *gin.Context) {
		if tokenHash == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin API is not configured"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" || !security.CheckAdminToken(tokenHash, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware applies the limiter per client IP.
func RateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
