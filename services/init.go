package services

import (
	"github.com/customeros/voicemail-transcriber/config"
	"github.com/customeros/voicemail-transcriber/interfaces"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/services/imap"
	"github.com/customeros/voicemail-transcriber/services/mailbox"
	"github.com/customeros/voicemail-transcriber/services/smtp"
	"github.com/customeros/voicemail-transcriber/services/transcription"
	"github.com/customeros/voicemail-transcriber/services/voicemail"
)

type Services struct {
	IMAPService  *imap.IMAPService
	SMTPClient   *smtp.SMTPClient
	Mailbox      interfaces.MailboxGateway
	SpeechToText interfaces.SpeechToText
	Folders      *voicemail.FolderStateMachine
	Processor    *voicemail.MessageProcessor
	Coordinator  *voicemail.RunCoordinator
}

func InitServices(cfg *config.Config, log logger.Logger) *Services {
	imapService := imap.NewIMAPService(cfg.ImapConfig, log)
	smtpClient := smtp.NewSMTPClient(cfg.SmtpConfig, log)
	gateway := mailbox.NewGateway(imapService, smtpClient)
	stt := transcription.NewWhisperService(cfg.WhisperConfig, log)

	app := cfg.AppConfig
	folders := voicemail.NewFolderStateMachine(gateway, voicemail.FolderNames{
		Source:     app.SourceFolder,
		Root:       app.TranscriptionFolder,
		Processing: app.ProcessingFolder,
		Done:       app.DoneFolder,
	}, log)

	processor := voicemail.NewMessageProcessor(voicemail.ProcessorConfig{
		TargetEmail:     app.TargetEmail,
		Marker:          app.TranscriptionMarker,
		SubjectFormat:   app.TranscriptSubjectFormat,
		SentFolder:      app.SentFolder,
		SentLookupLimit: app.SentLookupLimit,
	}, gateway, folders, voicemail.NewAttachmentExtractor(log), stt, log)

	coordinator := voicemail.NewRunCoordinator(voicemail.CoordinatorConfig{
		VoicemailSender: app.VoicemailSender,
		MaxEmailsPerRun: app.MaxEmailsPerRun,
	}, gateway, folders, processor, log)

	return &Services{
		IMAPService:  imapService,
		SMTPClient:   smtpClient,
		Mailbox:      gateway,
		SpeechToText: stt,
		Folders:      folders,
		Processor:    processor,
		Coordinator:  coordinator,
	}
}
