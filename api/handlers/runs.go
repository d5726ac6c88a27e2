package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

// TriggerRun starts a transcription run in the background.
// It answers 409 when a run is already in progress.
func TriggerRun(runs RunController, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RunHandler.TriggerRun")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		if runs.Running() {
			tracing.TraceErr(span, mailerrors.ErrRunInProgress)
			c.JSON(http.StatusConflict, gin.H{"error": mailerrors.ErrRunInProgress.Error()})
			return
		}

		runCtx := utils.WithCustomContext(context.Background(), &utils.CustomContext{
			AppSource: utils.GetAppSourceFromContext(ctx),
		})
		runCtx = opentracing.ContextWithSpan(runCtx, span)

		go func() {
			defer tracing.RecoverAndLogToJaeger(log)
			summary, err := runs.Run(runCtx)
			if err != nil {
				if errors.Is(err, mailerrors.ErrRunInProgress) {
					return
				}
				log.Errorf("Triggered run failed: %v", err)
				return
			}
			log.Infof("Triggered run %s finished", summary.RunID)
		}()

		c.JSON(http.StatusAccepted, gin.H{"status": "run started"})
	}
}
