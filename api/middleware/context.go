package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/customeros/voicemail-transcriber/internal/utils"
)

// CustomContextMiddleware tags every request context with the app source
func CustomContextMiddleware(appSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.WithCustomContext(c.Request.Context(), &utils.CustomContext{AppSource: appSource})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
