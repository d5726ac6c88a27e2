package tracing

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"

	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

const (
	SpanTagRunId     = "run-id"
	SpanTagMessageId = "message-id"
	SpanTagFolder    = "folder"
	SpanTagComponent = "component"
)

const (
	SpanTagComponentRest        = "rest"
	SpanTagComponentCronJob     = "cronJob"
	SpanTagComponentService     = "service"
	SpanTagComponentImap        = "imap"
	SpanTagComponentSmtp        = "smtp"
	SpanTagComponentHttpService = "httpService"
)

func StartHttpServerTracerSpanWithHeader(ctx context.Context, operationName string, headers http.Header) (context.Context, opentracing.Span) {
	spanCtx, err := opentracing.GlobalTracer().Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(headers))
	if err != nil {
		serverSpan := opentracing.GlobalTracer().StartSpan(operationName)
		return opentracing.ContextWithSpan(ctx, serverSpan), serverSpan
	}

	serverSpan := opentracing.GlobalTracer().StartSpan(operationName, ext.RPCServerOption(spanCtx))
	return opentracing.ContextWithSpan(ctx, serverSpan), serverSpan
}

func StartTracerSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	serverSpan := opentracing.GlobalTracer().StartSpan(operationName)
	return serverSpan, opentracing.ContextWithSpan(ctx, serverSpan)
}

func InjectSpanContextIntoHTTPRequest(req *http.Request, span opentracing.Span) *http.Request {
	if span != nil {
		_ = span.Tracer().Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))
	}
	return req
}

func setDefaultSpanTags(ctx context.Context, span opentracing.Span) {
	runId := utils.GetRunIdFromContext(ctx)
	messageId := utils.GetMessageIdFromContext(ctx)
	if runId != "" {
		span.SetTag(SpanTagRunId, runId)
	}
	if messageId != "" {
		span.SetTag(SpanTagMessageId, messageId)
	}
}

func SetDefaultRestSpanTags(ctx context.Context, span opentracing.Span) {
	setDefaultSpanTags(ctx, span)
	TagComponentRest(span)
}

func SetDefaultServiceSpanTags(ctx context.Context, span opentracing.Span) {
	setDefaultSpanTags(ctx, span)
	TagComponentService(span)
}

func SetDefaultImapSpanTags(ctx context.Context, span opentracing.Span) {
	setDefaultSpanTags(ctx, span)
	span.SetTag(SpanTagComponent, SpanTagComponentImap)
}

func SetDefaultSmtpSpanTags(ctx context.Context, span opentracing.Span) {
	setDefaultSpanTags(ctx, span)
	span.SetTag(SpanTagComponent, SpanTagComponentSmtp)
}

func SetDefaultHttpServiceSpanTags(ctx context.Context, span opentracing.Span) {
	setDefaultSpanTags(ctx, span)
	span.SetTag(SpanTagComponent, SpanTagComponentHttpService)
}

func TraceErr(span opentracing.Span, err error, fields ...log.Field) {
	if span == nil || err == nil {
		return
	}
	ext.LogError(span, err, fields...)
}

func LogObjectAsJson(span opentracing.Span, name string, object any) {
	if object == nil {
		span.LogFields(log.String(name, "nil"))
		return
	}
	jsonObject, err := json.Marshal(object)
	if err == nil {
		span.LogFields(log.String(name, string(jsonObject)))
	} else {
		span.LogFields(log.Object(name, object))
	}
}

func TagFolder(span opentracing.Span, folder string) {
	if folder != "" {
		span.SetTag(SpanTagFolder, folder)
	}
}

func TagMessage(span opentracing.Span, messageId string) {
	if messageId != "" {
		span.SetTag(SpanTagMessageId, messageId)
	}
}

func TagComponentCronJob(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentCronJob)
}

func TagComponentRest(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentRest)
}

func TagComponentService(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentService)
}

func RecoveryWithJaeger(tracer opentracing.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				span := tracer.StartSpan("panic-recovery")
				defer span.Finish()

				buf := make([]byte, 4096)
				stackSize := runtime.Stack(buf, false)
				span.LogKV(
					"event", "error",
					"error.object", r,
					"stack", string(buf[:stackSize]),
				)
				span.SetTag("error", true)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

func RecoverAndLogToJaeger(appLogger logger.Logger) {
	if r := recover(); r != nil {
		tracer := opentracing.GlobalTracer()
		span := tracer.StartSpan("panic-recovery")
		defer span.Finish()

		stackTrace := string(debug.Stack())
		span.LogKV(
			"event", "error",
			"error.object", r,
			"stack", stackTrace,
		)
		span.SetTag("error", true)

		appLogger.Errorf("Recovered from panic: %v\nStack trace:\n%s", r, stackTrace)
	}
}
