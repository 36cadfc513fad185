package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const usernameKey = "username"

// UsernameFromContext extracts the authenticated admin username.
func UsernameFromContext(c *gin.Context) string {
	return c.GetString(usernameKey)
}

// RequireAdmin validates the Authorization bearer token and rejects
// non-admin callers.
func RequireAdmin(issuer *TokenIssuer, service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		username, err := issuer.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "could not validate credentials",
			})
			return
		}

		isAdmin, err := service.IsAdmin(c.Request.Context(), username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "service unavailable",
			})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "could not validate credentials",
			})
			return
		}

		c.Set(usernameKey, username)
		c.Next()
	}
}
