package tracing

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-client-go/log/zap"

	"github.com/customeros/voicemail-transcriber/internal/logger"
)

type JaegerConfig struct {
	Endpoint     string  `env:"JAEGER_ENDPOINT"`
	ServiceName  string  `env:"JAEGER_SERVICE_NAME" envDefault:"voicemail-transcriber"`
	AgentHost    string  `env:"JAEGER_AGENT_HOST" envDefault:"localhost"`
	AgentPort    string  `env:"JAEGER_AGENT_PORT" envDefault:"6831"`
	Enabled      bool    `env:"JAEGER_ENABLED" envDefault:"false"`
	LogSpans     bool    `env:"JAEGER_REPORTER_LOG_SPANS" envDefault:"false"`
	SamplerType  string  `env:"JAEGER_SAMPLER_TYPE" envDefault:"const"`
	SamplerParam float64 `env:"JAEGER_SAMPLER_PARAM" envDefault:"1"`
}

func NewJaegerTracer(jaegerConfig *JaegerConfig, log logger.Logger) (opentracing.Tracer, io.Closer, error) {
	cfg := initJaeger(jaegerConfig)

	return cfg.NewTracer(config.Logger(zap.NewLogger(log.Logger())))
}

// InitGlobalTracer installs the jaeger tracer as the global tracer.
// When the tracer cannot be built the no-op global tracer stays in place.
func InitGlobalTracer(jaegerConfig *JaegerConfig, log logger.Logger) io.Closer {
	tracer, closer, err := NewJaegerTracer(jaegerConfig, log)
	if err != nil {
		log.Warnf("Could not initialize jaeger tracer, tracing disabled: %v", err)
		return noopCloser{}
	}
	opentracing.SetGlobalTracer(tracer)
	return closer
}

func initJaeger(jaegerConfig *JaegerConfig) *config.Configuration {
	cfg := &config.Configuration{
		ServiceName: jaegerConfig.ServiceName,
		Disabled:    !jaegerConfig.Enabled,
		Sampler: &config.SamplerConfig{
			Type:  jaegerConfig.SamplerType,
			Param: jaegerConfig.SamplerParam,
		},
		Reporter: &config.ReporterConfig{
			LogSpans: jaegerConfig.LogSpans,
		},
	}

	if jaegerConfig.Endpoint != "" {
		cfg.Reporter.CollectorEndpoint = jaegerConfig.Endpoint
	} else {
		cfg.Reporter.LocalAgentHostPort = jaegerConfig.AgentHost + ":" + jaegerConfig.AgentPort
	}

	return cfg
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
