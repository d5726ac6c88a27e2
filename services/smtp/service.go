package smtp

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"sort"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/voicemail-transcriber/config"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

type SMTPClient struct {
	cfg *config.SmtpConfig
	log logger.Logger
}

func NewSMTPClient(cfg *config.SmtpConfig, log logger.Logger) *SMTPClient {
	return &SMTPClient{
		cfg: cfg,
		log: log,
	}
}

// Send builds a MIME message from the outgoing message and delivers it.
// Attachment paths are read from disk when the message is built.
func (s *SMTPClient) Send(ctx context.Context, message *models.OutgoingMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPClient.Send")
	defer span.Finish()
	tracing.SetDefaultSmtpSpanTags(ctx, span)

	if err := s.validateMessage(message); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(mailerrors.ErrPublish, err.Error())
	}

	buffer, err := s.prepareMessage(ctx, message)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(mailerrors.ErrPublish, err.Error())
	}

	if err = s.sendToServer(ctx, message.FromAddress, message.ToAddresses, buffer); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(mailerrors.ErrPublish, err.Error())
	}

	s.log.Infof("Sent '%s' to %v", message.Subject, message.ToAddresses)
	return nil
}

func (s *SMTPClient) validateMessage(message *models.OutgoingMessage) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if !utils.IsValidEmail(message.FromAddress) {
		return fmt.Errorf("from address is not valid: '%s'", message.FromAddress)
	}
	if len(message.ToAddresses) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, to := range message.ToAddresses {
		if !utils.IsValidEmail(to) {
			return fmt.Errorf("recipient address is not valid: '%s'", to)
		}
	}
	if message.Subject == "" {
		return errors.New("message must have a subject")
	}
	if message.BodyText == "" {
		return errors.New("message must have text content")
	}
	return nil
}

// prepareMessage renders the message in MIME format
func (s *SMTPClient) prepareMessage(ctx context.Context, message *models.OutgoingMessage) (*bytes.Buffer, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPClient.prepareMessage")
	defer span.Finish()
	tracing.SetDefaultSmtpSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "headers", message.Headers)

	recipients := make([]mail.Address, 0, len(message.ToAddresses))
	for _, to := range message.ToAddresses {
		recipients = append(recipients, mail.Address{Address: to})
	}

	builder := enmime.Builder().
		From("", message.FromAddress).
		ToAddrs(recipients).
		Subject(message.Subject).
		Date(utils.Now()).
		Text([]byte(message.BodyText))

	// deterministic header order keeps the encoded message stable
	keys := make([]string, 0, len(message.Headers))
	for key := range message.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		builder = builder.Header(key, message.Headers[key])
	}

	for _, path := range message.AttachmentPaths {
		builder = builder.AddFileAttachment(path)
	}

	part, err := builder.Build()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to build message")
	}

	buffer := bytes.NewBuffer(nil)
	if err = part.Encode(buffer); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to encode message")
	}
	span.SetTag("message.size", buffer.Len())
	return buffer, nil
}

// sendToServer delivers the rendered message. Port 465 style servers need
// SMTP_IMPLICIT_TLS; otherwise STARTTLS is used when the server offers it.
func (s *SMTPClient) sendToServer(ctx context.Context, from string, to []string, buffer *bytes.Buffer) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPClient.sendToServer")
	defer span.Finish()
	tracing.SetDefaultSmtpSpanTags(ctx, span)
	span.SetTag("server", s.cfg.Host)
	span.SetTag("port", s.cfg.Port)
	span.SetTag("implicit_tls", s.cfg.ImplicitTLS)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}

	var err error
	if s.cfg.ImplicitTLS {
		err = gosmtp.SendMailTLS(addr, auth, from, to, buffer)
	} else {
		err = gosmtp.SendMail(addr, auth, from, to, buffer)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to send via %s", addr)
	}
	return nil
}
