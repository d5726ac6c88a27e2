package config

import (
	"time"
)

type AppConfig struct {
	TargetEmail             string `env:"TARGET_EMAIL,required"`
	VoicemailSender         string `env:"VOICEMAIL_SENDER" envDefault:"unityconnection@hosted-comm-service.a1.net"`
	SourceFolder            string `env:"SOURCE_FOLDER" envDefault:"INBOX"`
	TranscriptionFolder     string `env:"TRANSCRIPTION_FOLDER" envDefault:"Transkription"`
	ProcessingFolder        string `env:"PROCESSING_FOLDER" envDefault:"In Bearbeitung"`
	DoneFolder              string `env:"DONE_FOLDER" envDefault:"Bereits transkripiert"`
	SentFolder              string `env:"SENT_FOLDER" envDefault:"Sent"`
	SentLookupLimit         int    `env:"SENT_LOOKUP_LIMIT" envDefault:"10"`
	MaxEmailsPerRun         int    `env:"MAX_EMAILS_PER_RUN" envDefault:"25"`
	TranscriptionMarker     string `env:"TRANSCRIPTION_MARKER" envDefault:"--- AUTOMATISCHES TRANSKRIPT ---"`
	TranscriptSubjectFormat string `env:"TRANSCRIPT_SUBJECT_FORMAT" envDefault:"Transkription: Sprachnachricht von %s"`
	// StartDate is validated and logged but not applied to the message filter.
	StartDate            string `env:"START_DATE" envDefault:"2024-01-01T00:00:00Z"`
	CheckIntervalSeconds int    `env:"CHECK_INTERVAL_SECONDS" envDefault:"120"`
	APIPort              string `env:"PORT" envDefault:"12222"`
	// APIKey protects the manual run trigger; empty disables it.
	APIKey string `env:"API_KEY"`
}

type ImapConfig struct {
	Host     string `env:"IMAP_HOST,required"`
	Port     int    `env:"IMAP_PORT" envDefault:"993"`
	Username string `env:"IMAP_USERNAME,required"`
	Password string `env:"IMAP_PASSWORD,required"`
	TLS      bool   `env:"IMAP_TLS" envDefault:"true"`
}

type SmtpConfig struct {
	Host        string `env:"SMTP_HOST,required"`
	Port        int    `env:"SMTP_PORT" envDefault:"587"`
	Username    string `env:"SMTP_USERNAME"`
	Password    string `env:"SMTP_PASSWORD"`
	ImplicitTLS bool   `env:"SMTP_IMPLICIT_TLS" envDefault:"false"`
}

type WhisperConfig struct {
	Url     string        `env:"WHISPER_URL" envDefault:"http://localhost:8000"`
	ApiKey  string        `env:"WHISPER_API_KEY"`
	Model   string        `env:"WHISPER_MODEL" envDefault:"small"`
	Timeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"10m"`
}

type KubernetesConfig struct {
	PodName   string `env:"POD_NAME" envDefault:"local"`
	Namespace string `env:"POD_NAMESPACE" envDefault:"default"`
	LocalDev  bool   `env:"LOCAL_DEV" envDefault:"false"`
}
