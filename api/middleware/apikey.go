package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyConfig holds the configuration for API key authentication
type APIKeyConfig struct {
	HeaderName  string
	ValidAPIKey string
}

// APIKeyMiddleware rejects requests whose header does not carry the configured key
func APIKeyMiddleware(config APIKeyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(config.HeaderName))

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing API key",
			})
			c.Abort()
			return
		}

		if apiKey != config.ValidAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
