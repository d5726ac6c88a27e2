package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/voicemail-transcriber/api"
	"github.com/customeros/voicemail-transcriber/config"
	"github.com/customeros/voicemail-transcriber/internal/cron"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
	"github.com/customeros/voicemail-transcriber/internal/utils"
	"github.com/customeros/voicemail-transcriber/services"
)

const (
	AppSourceOnce   = "once"
	AppSourceDaemon = "daemon"

	shutdownTimeout = 15 * time.Second
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	services     *services.Services
	router       *gin.Engine
	httpServer   *http.Server
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config) *Server {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	closer := tracing.InitGlobalTracer(cfg.Tracing, appLogger)

	svcs := services.InitServices(cfg, appLogger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		services:     svcs,
		router:       router,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

// startup logs the configuration and authenticates against the mailbox.
// An authentication failure ends the process.
func (s *Server) startup(ctx context.Context) {
	s.log.Info(s.config.Summary())

	if err := s.services.IMAPService.Authenticate(ctx); err != nil {
		s.log.Fatalf("Mailbox authentication failed: %v", err)
	}
	s.log.Infof("Authenticated as %s", s.config.ImapConfig.Username)
}

// RunOnce performs a single transcription run and returns.
func (s *Server) RunOnce() error {
	defer s.close()

	ctx := appContext(AppSourceOnce)
	s.startup(ctx)

	stop := s.notifyStop()
	defer func() {
		signal.Stop(stop)
		close(stop)
	}()

	_, err := s.services.Coordinator.Run(ctx)
	return err
}

// RunDaemon runs once immediately, then on the configured schedule until a
// termination signal arrives.
func (s *Server) RunDaemon() error {
	defer s.close()

	ctx, cancel := context.WithCancel(appContext(AppSourceDaemon))
	defer cancel()
	s.startup(ctx)

	api.RegisterRoutes(s.router, s.services.Coordinator, s.config.AppConfig.APIKey, s.log)
	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on port %s", s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})

	go s.wrapGoroutine("initial_run", func() {
		if _, err := s.services.Coordinator.Run(ctx); err != nil {
			s.log.Errorf("Initial run failed: %v", err)
		}
	})

	s.cronManager = cron.NewCronManager(s.config, s.log, s.kubernetesClient(), s.services.Coordinator)
	if err := s.cronManager.Start(ctx); err != nil {
		return err
	}
	s.log.Infof("Daemon running, schedule %s. Press Ctrl+C to exit.", cron.TranscriptionSchedule(s.config))

	return s.waitForShutdown()
}

// notifyStop sets the coordinator stop flag on SIGINT or SIGTERM. The
// message in flight finishes first.
func (s *Server) notifyStop() chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-stop; ok {
			s.log.Info("Received shutdown signal")
			s.services.Coordinator.Stop()
		}
	}()
	return stop
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		s.log.Info("Shutting down...")
	case <-s.cronManager.Done():
		s.log.Info("Scheduler stopped, shutting down...")
	}

	s.services.Coordinator.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	// waits for a scheduled run to finish its current message
	s.cronManager.Stop()

	for s.services.Coordinator.Running() {
		select {
		case <-shutdownCtx.Done():
			s.log.Warn("Run still in progress at shutdown timeout")
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

func (s *Server) kubernetesClient() kubernetes.Interface {
	if s.config.KubernetesConfig.LocalDev {
		return nil
	}
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		s.log.Debugf("Not running in a cluster, leader election disabled: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		s.log.Warnf("Could not create kubernetes client: %v", err)
		return nil
	}
	return client
}

func (s *Server) close() {
	if err := s.services.IMAPService.Close(); err != nil {
		s.log.Warnf("Error closing mailbox connection: %v", err)
	}
	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}
	_ = s.log.Sync()
}

func appContext(source string) context.Context {
	return utils.WithCustomContext(context.Background(), &utils.CustomContext{AppSource: source})
}
