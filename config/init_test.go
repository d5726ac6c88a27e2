package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("TARGET_EMAIL", "office@kanzlei-huber.at")
	t.Setenv("IMAP_HOST", "imap.kanzlei-huber.at")
	t.Setenv("IMAP_USERNAME", "office@kanzlei-huber.at")
	t.Setenv("IMAP_PASSWORD", "secret")
	t.Setenv("SMTP_HOST", "smtp.kanzlei-huber.at")
}

func TestParseConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := ParseConfig()

	require.NoError(t, err)
	app := cfg.AppConfig
	assert.Equal(t, "unityconnection@hosted-comm-service.a1.net", app.VoicemailSender)
	assert.Equal(t, "INBOX", app.SourceFolder)
	assert.Equal(t, "Transkription", app.TranscriptionFolder)
	assert.Equal(t, "In Bearbeitung", app.ProcessingFolder)
	assert.Equal(t, "Bereits transkripiert", app.DoneFolder)
	assert.Equal(t, 25, app.MaxEmailsPerRun)
	assert.Equal(t, 120, app.CheckIntervalSeconds)
	assert.Equal(t, "--- AUTOMATISCHES TRANSKRIPT ---", app.TranscriptionMarker)
	assert.Equal(t, 993, cfg.ImapConfig.Port)
	assert.Equal(t, 587, cfg.SmtpConfig.Port)
	assert.Equal(t, "small", cfg.WhisperConfig.Model)
	assert.Equal(t, 10*time.Minute, cfg.WhisperConfig.Timeout)
	assert.Empty(t, cfg.CronConfig.CronScheduleTranscription)

	start, err := app.StartDateTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestParseConfig_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_EMAIL", "")

	_, err := ParseConfig()

	assert.ErrorIs(t, err, mailerrors.ErrConfig)
}

func TestParseConfig_CollectsAllProblems(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VOICEMAIL_SENDER", "not-an-address")
	t.Setenv("CHECK_INTERVAL_SECONDS", "0")
	t.Setenv("MAX_EMAILS_PER_RUN", "0")
	t.Setenv("START_DATE", "01.01.2024")
	t.Setenv("WHISPER_MODEL", "huge")
	t.Setenv("TRANSCRIPT_SUBJECT_FORMAT", "Transkription")

	_, err := ParseConfig()

	require.ErrorIs(t, err, mailerrors.ErrConfig)
	for _, problem := range []string{
		"VOICEMAIL_SENDER",
		"CHECK_INTERVAL_SECONDS",
		"MAX_EMAILS_PER_RUN",
		"START_DATE",
		"WHISPER_MODEL",
		"TRANSCRIPT_SUBJECT_FORMAT",
	} {
		assert.Contains(t, err.Error(), problem)
	}
}

func TestSummary_OmitsSecrets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SMTP_PASSWORD", "smtp-secret")
	t.Setenv("WHISPER_API_KEY", "whisper-secret")

	cfg, err := ParseConfig()
	require.NoError(t, err)

	summary := cfg.Summary()
	assert.Contains(t, summary, "office@kanzlei-huber.at")
	assert.Contains(t, summary, "Transkription/In Bearbeitung")
	assert.NotContains(t, summary, "secret")
}
