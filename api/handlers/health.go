package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/voicemail-transcriber/internal/models"
)

// RunController is the view of the run coordinator the API needs.
type RunController interface {
	Run(ctx context.Context) (models.RunSummary, error)
	Running() bool
	LastSummary() (models.RunSummary, bool)
}

type StatusResponse struct {
	Running bool               `json:"running"`
	LastRun *models.RunSummary `json:"lastRun"`
}

// HealthCheck returns a simple health check response
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status reports whether a run is in progress and the summary of the last run
func Status(runs RunController) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := StatusResponse{Running: runs.Running()}
		if last, ok := runs.LastSummary(); ok {
			response.LastRun = &last
		}
		c.JSON(http.StatusOK, response)
	}
}
