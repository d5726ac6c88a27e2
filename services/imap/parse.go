package imap

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

func parseMessage(folder models.Folder, msg *imap.Message, envelopeOnly bool) (*models.VoicemailMessage, error) {
	message := &models.VoicemailMessage{
		UID:        msg.Uid,
		Folder:     folder,
		Seen:       hasFlag(msg.Flags, imap.SeenFlag),
		ReceivedAt: msg.InternalDate,
	}
	applyEnvelope(message, msg.Envelope)

	if envelopeOnly {
		return message, nil
	}

	raw := fullMessage(msg)
	if len(raw) == 0 {
		return nil, errors.New("message body missing from fetch response")
	}
	if err := parseBody(message, raw); err != nil {
		return nil, err
	}
	return message, nil
}

func applyEnvelope(message *models.VoicemailMessage, envelope *imap.Envelope) {
	if envelope == nil {
		return
	}
	if !envelope.Date.IsZero() {
		message.ReceivedAt = envelope.Date
	}
	message.Subject = envelope.Subject
	message.ID = envelope.MessageId

	if len(envelope.From) > 0 {
		sender := envelope.From[0]
		message.FromName = sender.PersonalName
		message.FromAddress = utils.NormalizeEmail(sender.Address())
	}
}

// fullMessage returns the BODY[] literal of a fetch response.
func fullMessage(msg *imap.Message) []byte {
	for section, literal := range msg.Body {
		if literal == nil || len(section.Path) != 0 || section.Specifier != imap.EntireSpecifier {
			continue
		}
		data, err := io.ReadAll(literal)
		if err == nil {
			return data
		}
	}
	return nil
}

// parseBody fills bodies and attachments from an RFC 5322 message.
// enmime decodes transfer encodings, so parts without parse errors are raw bytes.
func parseBody(message *models.VoicemailMessage, raw []byte) error {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "failed to parse message")
	}

	message.BodyText = env.Text
	message.BodyHTML = env.HTML
	if message.ID == "" {
		message.ID = strings.TrimSpace(env.GetHeader("Message-Id"))
	}
	if message.Subject == "" {
		message.Subject = env.GetHeader("Subject")
	}
	if message.FromAddress == "" {
		if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
			message.FromAddress = utils.NormalizeEmail(from[0].Address)
			message.FromName = from[0].Name
		}
	}

	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines)+len(env.OtherParts))
	parts = append(parts, env.Attachments...)
	parts = append(parts, env.Inlines...)
	parts = append(parts, env.OtherParts...)

	for _, part := range parts {
		if part.FileName == "" {
			continue
		}
		encoding := models.AttachmentEncodingRaw
		if len(part.Errors) > 0 {
			encoding = models.AttachmentEncodingUnknown
		}
		message.Attachments = append(message.Attachments, models.Attachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Content:     part.Content,
			Encoding:    encoding,
		})
	}
	return nil
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}
