package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/voicemail-transcriber/config"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
)

const (
	// GroupTranscription is the group for mailbox transcription jobs
	GroupTranscription = "transcription"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	leaseName = "voicemail-transcriber-cron-leader"
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupTranscription: new(sync.Mutex),
	},
}

// TranscriptionRunner is the job the scheduler triggers.
type TranscriptionRunner interface {
	Run(ctx context.Context) (models.RunSummary, error)
}

type CronManager struct {
	cfg    *config.Config
	log    logger.Logger
	k8s    kubernetes.Interface
	runner TranscriptionRunner

	// mu guards cron, jobIDs and stopped; leadership callbacks run on their own goroutine
	mu      sync.Mutex
	cron    *cronv3.Cron
	jobIDs  map[string]cronv3.EntryID
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, runner TranscriptionRunner) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		k8s:    k8s,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
		runner: runner,
	}
}

// TranscriptionSchedule returns the configured cron expression, or an @every
// schedule built from the check interval.
func TranscriptionSchedule(cfg *config.Config) string {
	if cfg.CronConfig != nil && cfg.CronConfig.CronScheduleTranscription != "" {
		return cfg.CronConfig.CronScheduleTranscription
	}
	return fmt.Sprintf("@every %ds", cfg.AppConfig.CheckIntervalSeconds)
}

// Start initializes and starts the cron manager with leader election.
// Without a k8s client, or in local development, it starts in local mode.
func (cm *CronManager) Start(ctx context.Context) error {
	if cm.k8s == nil || cm.cfg.KubernetesConfig.LocalDev {
		cm.log.Info("Starting cron manager in local mode")
		return cm.StartCron()
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      leaseName,
			Namespace: cm.cfg.KubernetesConfig.Namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: cm.cfg.KubernetesConfig.PodName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					if err := cm.StartCron(); err != nil {
						cm.log.Errorf("Could not start crons after winning leadership: %v", err)
					}
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(ctx)
	}()

	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		return cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager, waiting for a running job to finish.
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		cm.mu.Lock()
		c := cm.cron
		cm.stopped = true
		cm.mu.Unlock()

		if c != nil {
			cm.log.Info("Stopping cron manager")
			ctx := c.Stop()
			<-ctx.Done()
		}
		close(cm.stopCh)
	})
}

// Done is closed once the cron manager has stopped.
func (cm *CronManager) Done() <-chan struct{} {
	return cm.stopCh
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	cronConfig := cm.cfg.CronConfig

	if cronConfig != nil && cronConfig.CronScheduleHeartbeat != "" {
		podName := cm.cfg.KubernetesConfig.PodName
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Debugf("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			return errors.Wrap(mailerrors.ErrConfig, fmt.Sprintf("heartbeat schedule '%s': %v", cronConfig.CronScheduleHeartbeat, err))
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	schedule := TranscriptionSchedule(cm.cfg)
	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		jobLocks.locks[GroupTranscription].Lock()
		defer jobLocks.locks[GroupTranscription].Unlock()
		cm.runTranscription()
	})
	if err != nil {
		return errors.Wrap(mailerrors.ErrConfig, fmt.Sprintf("transcription schedule '%s': %v", schedule, err))
	}
	cm.jobIDs["transcription"] = id
	cm.log.Infof("Registered transcription job with schedule: %s", schedule)
	return nil
}

// StartCron initializes and starts the cron scheduler. It does nothing once Stop was called.
func (cm *CronManager) StartCron() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.stopped {
		cm.log.Info("Cron manager already stopped, not starting")
		return nil
	}
	if cm.cron != nil {
		return nil
	}

	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

func (cm *CronManager) runTranscription() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runTranscription")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	summary, err := cm.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, mailerrors.ErrRunInProgress) {
			return
		}
		tracing.TraceErr(span, err)
		cm.log.Errorf("Transcription run failed: %v", err)
		return
	}
	span.SetTag("processed", summary.Processed)
}
