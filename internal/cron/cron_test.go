package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/voicemail-transcriber/config"
	cron_config "github.com/customeros/voicemail-transcriber/internal/cron/config"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(_ context.Context) (models.RunSummary, error) {
	r.calls.Add(1)
	return models.RunSummary{Processed: 1}, r.err
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig:        &config.AppConfig{CheckIntervalSeconds: 120},
		CronConfig:       &cron_config.Config{CronScheduleHeartbeat: "0 * * * * *"},
		KubernetesConfig: &config.KubernetesConfig{PodName: "local", Namespace: "default", LocalDev: true},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}
	runner := &countingRunner{}

	cm := NewCronManager(cfg, log, k8s, runner)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestTranscriptionSchedule(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "@every 120s", TranscriptionSchedule(cfg))

	cfg.CronConfig.CronScheduleTranscription = "0 */5 * * * *"
	assert.Equal(t, "0 */5 * * * *", TranscriptionSchedule(cfg))
}

func TestCronManager_StartCronLocalMode(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), &mockKubernetesInterface{}, &countingRunner{})

	require.NoError(t, cm.Start(context.Background()))
	defer cm.Stop()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	require.NotNil(t, cm.cron)
	assert.Len(t, cm.jobIDs, 2)
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "transcription")
}

func TestCronManager_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.CronConfig.CronScheduleTranscription = "not a schedule"
	cm := NewCronManager(cfg, getLogger(), nil, &countingRunner{})

	err := cm.StartCron()

	assert.ErrorIs(t, err, mailerrors.ErrConfig)
}

func TestCronManager_TranscriptionJobRuns(t *testing.T) {
	cfg := testConfig()
	cfg.CronConfig.CronScheduleHeartbeat = ""
	cfg.AppConfig.CheckIntervalSeconds = 1
	runner := &countingRunner{}
	cm := NewCronManager(cfg, getLogger(), nil, runner)

	require.NoError(t, cm.StartCron())
	defer cm.Stop()

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestCronManager_RunInProgressIsNotAnError(t *testing.T) {
	runner := &countingRunner{err: mailerrors.ErrRunInProgress}
	cm := NewCronManager(testConfig(), getLogger(), nil, runner)

	assert.NotPanics(t, cm.runTranscription)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), &mockKubernetesInterface{}, &countingRunner{})

	mockCron := cronv3.New()
	mockCron.Start()
	cm.mu.Lock()
	cm.cron = mockCron
	cm.mu.Unlock()

	cm.Stop()
	cm.Stop()

	select {
	case <-cm.Done():
	default:
		t.Error("Stop channel was not closed")
	}
}

func TestCronManager_StartAndStopFromDifferentGoroutines(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, &countingRunner{})

	started := make(chan error, 1)
	go func() {
		// leadership callbacks start the scheduler off the main goroutine
		started <- cm.StartCron()
	}()
	cm.Stop()
	require.NoError(t, <-started)

	<-cm.Done()
	require.NoError(t, cm.StartCron())

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cron != nil {
		// started before Stop took the lock, so Stop must have stopped it
		select {
		case <-cm.cron.Stop().Done():
		case <-time.After(time.Second):
			t.Error("scheduler still running after Stop")
		}
	}
	assert.True(t, cm.stopped)
}
