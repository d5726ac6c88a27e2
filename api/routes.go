package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/voicemail-transcriber/api/handlers"
	"github.com/customeros/voicemail-transcriber/api/middleware"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
)

const (
	AppSource    = "voicemail-transcriber"
	APIKeyHeader = "X-API-KEY"
)

// RegisterRoutes sets up the operational endpoints. The run trigger is only
// registered when an API key is configured.
func RegisterRoutes(r *gin.Engine, runs handlers.RunController, apiKey string, log logger.Logger) {
	if runs == nil {
		panic("RunController cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(runs))

	if apiKey == "" {
		return
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  APIKeyHeader,
		ValidAPIKey: apiKey,
	}))
	v1.Use(middleware.CustomContextMiddleware(AppSource))
	v1.Use(middleware.TracingMiddleware())
	{
		v1.POST("/runs", handlers.TriggerRun(runs, log))
	}
}
