package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	cron_config "github.com/customeros/voicemail-transcriber/internal/cron/config"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

var validWhisperModels = []string{"tiny", "base", "small", "medium", "large"}

type Config struct {
	AppConfig        *AppConfig
	ImapConfig       *ImapConfig
	SmtpConfig       *SmtpConfig
	WhisperConfig    *WhisperConfig
	CronConfig       *cron_config.Config
	KubernetesConfig *KubernetesConfig
	Logger           *logger.Config
	Tracing          *tracing.JaegerConfig
}

func InitConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	return ParseConfig()
}

// ParseConfig reads the configuration from the environment and validates it.
func ParseConfig() (*Config, error) {
	config := &Config{
		AppConfig:        &AppConfig{},
		ImapConfig:       &ImapConfig{},
		SmtpConfig:       &SmtpConfig{},
		WhisperConfig:    &WhisperConfig{},
		CronConfig:       &cron_config.Config{},
		KubernetesConfig: &KubernetesConfig{},
		Logger:           &logger.Config{},
		Tracing:          &tracing.JaegerConfig{},
	}

	if err := env.Parse(config); err != nil {
		return nil, errors.Wrap(mailerrors.ErrConfig, err.Error())
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate collects every configuration problem and reports them together.
func (c *Config) Validate() error {
	var problems []string

	app := c.AppConfig
	if !utils.IsValidEmail(app.TargetEmail) {
		problems = append(problems, fmt.Sprintf("TARGET_EMAIL is not a valid address: '%s'", app.TargetEmail))
	}
	if !utils.IsValidEmail(app.VoicemailSender) {
		problems = append(problems, fmt.Sprintf("VOICEMAIL_SENDER is not a valid address: '%s'", app.VoicemailSender))
	}
	if app.CheckIntervalSeconds < 1 {
		problems = append(problems, "CHECK_INTERVAL_SECONDS must be >= 1")
	}
	if app.MaxEmailsPerRun < 1 {
		problems = append(problems, "MAX_EMAILS_PER_RUN must be >= 1")
	}
	if app.SentLookupLimit < 1 {
		problems = append(problems, "SENT_LOOKUP_LIMIT must be >= 1")
	}
	if strings.TrimSpace(app.TranscriptionMarker) == "" {
		problems = append(problems, "TRANSCRIPTION_MARKER must not be empty")
	}
	for name, value := range map[string]string{
		"SOURCE_FOLDER":        app.SourceFolder,
		"TRANSCRIPTION_FOLDER": app.TranscriptionFolder,
		"PROCESSING_FOLDER":    app.ProcessingFolder,
		"DONE_FOLDER":          app.DoneFolder,
	} {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%s must not be empty", name))
		}
	}
	if !strings.Contains(app.TranscriptSubjectFormat, "%s") {
		problems = append(problems, "TRANSCRIPT_SUBJECT_FORMAT must contain %s for the phone number")
	}
	if _, err := app.StartDateTime(); err != nil {
		problems = append(problems, fmt.Sprintf("START_DATE must be in ISO format (e.g., 2024-01-01T00:00:00Z), got '%s'", app.StartDate))
	}

	if !utils.IsStringInSlice(c.WhisperConfig.Model, validWhisperModels) {
		problems = append(problems, fmt.Sprintf("WHISPER_MODEL must be one of %v, got '%s'", validWhisperModels, c.WhisperConfig.Model))
	}
	if c.WhisperConfig.Timeout <= 0 {
		problems = append(problems, "WHISPER_TIMEOUT must be positive")
	}

	if len(problems) > 0 {
		return errors.Wrap(mailerrors.ErrConfig, "\n  - "+strings.Join(problems, "\n  - "))
	}
	return nil
}

func (a *AppConfig) StartDateTime() (time.Time, error) {
	return time.Parse(time.RFC3339, a.StartDate)
}

// Summary describes the configuration for the startup log, without secrets.
func (c *Config) Summary() string {
	app := c.AppConfig
	return fmt.Sprintf(`Configuration:
  Target Email: %s
  Voicemail Sender: %s
  Source Folder: %s
  Processing Folder: %s/%s
  Done Folder: %s/%s
  Sent Folder: %s
  IMAP: %s:%d (tls=%t)
  SMTP: %s:%d (implicit tls=%t)
  Whisper: %s (model %s)
  Check Interval: %ds
  Max Emails per Run: %d
  Start Date: %s
  Log Level: %s
  Transcription Marker: %s`,
		app.TargetEmail,
		app.VoicemailSender,
		app.SourceFolder,
		app.TranscriptionFolder, app.ProcessingFolder,
		app.TranscriptionFolder, app.DoneFolder,
		app.SentFolder,
		c.ImapConfig.Host, c.ImapConfig.Port, c.ImapConfig.TLS,
		c.SmtpConfig.Host, c.SmtpConfig.Port, c.SmtpConfig.ImplicitTLS,
		c.WhisperConfig.Url, c.WhisperConfig.Model,
		app.CheckIntervalSeconds,
		app.MaxEmailsPerRun,
		app.StartDate,
		c.Logger.LogLevel,
		app.TranscriptionMarker,
	)
}
