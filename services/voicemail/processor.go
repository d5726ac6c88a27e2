package voicemail

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/voicemail-transcriber/interfaces"
	"github.com/customeros/voicemail-transcriber/internal/enum"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

const (
	HeaderTranscriptSource = "X-Transcript-Source"
	HeaderTranscriptId     = "X-Transcript-Id"

	receivedLayout = "2006-01-02 15:04"
	previewLength  = 60
)

type ProcessorConfig struct {
	TargetEmail     string
	Marker          string
	SubjectFormat   string
	SentFolder      string
	SentLookupLimit int
	// ScratchRoot is the parent of per-message scratch directories; empty means os.TempDir.
	ScratchRoot string
}

// Processor runs the workflow for a single message.
type Processor interface {
	Process(ctx context.Context, message *models.VoicemailMessage) enum.Outcome
}

type MessageProcessor struct {
	cfg       ProcessorConfig
	mailbox   interfaces.MailboxGateway
	folders   *FolderStateMachine
	extractor *AttachmentExtractor
	stt       interfaces.SpeechToText
	log       logger.Logger
}

func NewMessageProcessor(cfg ProcessorConfig, mailbox interfaces.MailboxGateway, folders *FolderStateMachine,
	extractor *AttachmentExtractor, stt interfaces.SpeechToText, log logger.Logger) *MessageProcessor {
	return &MessageProcessor{
		cfg:       cfg,
		mailbox:   mailbox,
		folders:   folders,
		extractor: extractor,
		stt:       stt,
		log:       log,
	}
}

// Process claims, transcribes, republishes and completes one message.
// Any outcome other than success or already-done leaves the message in Processing.
func (p *MessageProcessor) Process(ctx context.Context, message *models.VoicemailMessage) enum.Outcome {
	ctx = utils.WithMessageId(ctx, message.ID)
	span, ctx := opentracing.StartSpanFromContext(ctx, "MessageProcessor.Process")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	outcome := p.process(ctx, message)
	span.SetTag("outcome", outcome.String())
	return outcome
}

func (p *MessageProcessor) process(ctx context.Context, message *models.VoicemailMessage) enum.Outcome {
	p.log.Infof("Processing: %s", utils.FormatMessageSummary(message.Subject, message.FromAddress, message.ReceivedAt))

	token, err := p.folders.Claim(ctx, message)
	if errors.Is(err, mailerrors.ErrClaimStuck) {
		p.log.Errorf("Claimed %s but lost track of it, it stays in processing: %v", message.ID, err)
		return enum.OutcomeClaimStuck
	}
	if err != nil {
		p.log.Warnf("Could not claim %s, skipping: %v", message.ID, err)
		return enum.OutcomeClaimFailed
	}
	claimed := token.Message

	if p.containsMarker(claimed) {
		p.log.Infof("Message %s already carries the transcription marker, moving to done", message.ID)
		if err = p.folders.Complete(ctx, token); err != nil {
			p.log.Errorf("Could not complete already transcribed message %s: %v", message.ID, err)
			return enum.OutcomeCompleteFailed
		}
		return enum.OutcomeAlreadyDone
	}

	audio := p.extractor.Extract(ctx, claimed)
	if len(audio) == 0 {
		p.log.Warnf("No usable audio in %s, leaving it in processing", message.ID)
		return enum.OutcomeNoAudio
	}

	text := p.transcribeAll(ctx, audio)
	if text == "" {
		p.log.Errorf("All transcriptions failed for %s, leaving it in processing", message.ID)
		return enum.OutcomeAllFailed
	}

	scratch, err := newScratchDir(p.cfg.ScratchRoot, p.log)
	if err != nil {
		p.log.Errorf("Could not create scratch directory for %s: %v", message.ID, err)
		return enum.OutcomePublishFailed
	}
	defer scratch.Remove()

	outgoing, err := p.compose(claimed, text, audio, scratch)
	if err != nil {
		p.log.Errorf("Could not prepare attachments for %s: %v", message.ID, err)
		return enum.OutcomePublishFailed
	}

	if err = p.mailbox.Send(ctx, outgoing); err != nil {
		p.log.Errorf("Could not send transcription for %s: %v", message.ID, err)
		return enum.OutcomePublishFailed
	}
	p.log.Infof("Sent transcription '%s' to %s", outgoing.Subject, p.cfg.TargetEmail)

	p.removeSentCopy(ctx, outgoing.Subject)

	scratch.Remove()

	if err = p.folders.Complete(ctx, token); err != nil {
		p.log.Errorf("Could not move %s to done: %v", message.ID, err)
		return enum.OutcomeCompleteFailed
	}

	p.log.Infof("Successfully transcribed %s", message.ID)
	return enum.OutcomeSuccess
}

func (p *MessageProcessor) containsMarker(message *models.VoicemailMessage) bool {
	if strings.Contains(message.BodyText, p.cfg.Marker) {
		return true
	}
	return message.BodyHTML != "" && strings.Contains(utils.HTMLToText(message.BodyHTML), p.cfg.Marker)
}

// transcribeAll transcribes every attachment in order and joins the successful
// results with a blank line. Failed attachments are skipped.
func (p *MessageProcessor) transcribeAll(ctx context.Context, audio []models.AudioAttachment) string {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MessageProcessor.transcribeAll")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	texts := make([]string, 0, len(audio))
	for _, attachment := range audio {
		p.log.Infof("Transcribing %s (%d bytes)", attachment.Filename, len(attachment.Data))
		text, err := p.stt.Transcribe(ctx, models.TranscriptionRequest{
			Audio:    attachment.Data,
			Filename: attachment.Filename,
			Options:  models.VoicemailTranscriptionOptions(),
		})
		if err != nil {
			tracing.TraceErr(span, err)
			p.log.Warnf("Transcription of %s failed: %v", attachment.Filename, err)
			continue
		}
		p.log.Infof("Transcription preview: %s", utils.Preview(text, previewLength))
		texts = append(texts, text)
	}

	span.LogFields(tracingLog.Int("transcribed", len(texts)), tracingLog.Int("attachments", len(audio)))
	return strings.Join(texts, "\n\n")
}

func (p *MessageProcessor) compose(message *models.VoicemailMessage, text string, audio []models.AudioAttachment, scratch *scratchDir) (*models.OutgoingMessage, error) {
	paths, err := scratch.write(audio)
	if err != nil {
		return nil, err
	}

	phone := utils.ExtractPhoneNumber(message.Subject)
	body := fmt.Sprintf("Empfangen: %s\n\n%s\n\n%s", message.ReceivedAt.Format(receivedLayout), p.cfg.Marker, text)

	headers := map[string]string{
		HeaderTranscriptId: utils.GenerateNanoIDWithPrefix("tr", 16),
	}
	if message.ID != "" {
		headers[HeaderTranscriptSource] = message.ID
	}

	return &models.OutgoingMessage{
		FromAddress:     p.cfg.TargetEmail,
		ToAddresses:     []string{p.cfg.TargetEmail},
		Subject:         fmt.Sprintf(p.cfg.SubjectFormat, phone),
		BodyText:        body,
		Headers:         headers,
		AttachmentPaths: paths,
	}, nil
}

// removeSentCopy deletes the copy of the outgoing message that some providers
// file into the sent folder. Nothing here affects the outcome.
func (p *MessageProcessor) removeSentCopy(ctx context.Context, subject string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MessageProcessor.removeSentCopy")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if p.cfg.SentFolder == "" {
		return
	}

	sent := models.Folder{Name: p.cfg.SentFolder, Path: p.cfg.SentFolder}
	recent, err := p.mailbox.Query(ctx, sent, models.MessageFilter{EnvelopeOnly: true}, p.cfg.SentLookupLimit)
	if err != nil {
		tracing.TraceErr(span, err)
		p.log.Warnf("Could not look up sent copy: %v", err)
		return
	}

	for _, candidate := range recent {
		if candidate.Subject != subject {
			continue
		}
		if err = p.mailbox.Delete(ctx, candidate); err != nil {
			tracing.TraceErr(span, err)
			p.log.Warnf("Could not delete sent copy: %v", err)
			return
		}
		p.log.Debugf("Deleted sent copy '%s'", subject)
		return
	}
}
