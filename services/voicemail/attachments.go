package voicemail

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
)

const audioExtension = ".wav"

type AttachmentExtractor struct {
	log logger.Logger
}

func NewAttachmentExtractor(log logger.Logger) *AttachmentExtractor {
	return &AttachmentExtractor{log: log}
}

// HasAudio reports whether any attachment is named like a WAV file. Content is not inspected.
func HasAudio(message *models.VoicemailMessage) bool {
	for _, attachment := range message.Attachments {
		if isAudioFilename(attachment.Filename) {
			return true
		}
	}
	return false
}

// Extract returns the decoded audio attachments, first occurrence of each filename only.
// Attachments that cannot be decoded are logged and left out.
func (e *AttachmentExtractor) Extract(ctx context.Context, message *models.VoicemailMessage) []models.AudioAttachment {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AttachmentExtractor.Extract")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMessage(span, message.ID)

	seen := make(map[string]struct{})
	var audio []models.AudioAttachment

	for _, attachment := range message.Attachments {
		if !isAudioFilename(attachment.Filename) {
			continue
		}
		if _, dup := seen[attachment.Filename]; dup {
			e.log.Debugf("Skipping duplicate attachment %s", attachment.Filename)
			continue
		}
		seen[attachment.Filename] = struct{}{}

		data, err := decodeAttachment(attachment)
		if err != nil {
			tracing.TraceErr(span, err)
			e.log.Warnf("Could not decode attachment %s: %v", attachment.Filename, err)
			continue
		}
		audio = append(audio, models.AudioAttachment{Filename: attachment.Filename, Data: data})
	}

	span.SetTag("audio.count", len(audio))
	return audio
}

func isAudioFilename(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), audioExtension)
}

func decodeAttachment(attachment models.Attachment) ([]byte, error) {
	switch attachment.Encoding {
	case models.AttachmentEncodingRaw:
		return attachment.Content, nil
	case models.AttachmentEncodingBase64:
		data, err := decodeBase64(attachment.Content)
		if err != nil {
			return nil, errors.Wrap(mailerrors.ErrExtraction, err.Error())
		}
		return data, nil
	default:
		return sniffContent(attachment.Content), nil
	}
}

// sniffContent guesses the representation of content with an unknown encoding:
// recognizable audio stays as is, otherwise base64 is tried before falling back to the bytes.
func sniffContent(content []byte) []byte {
	if bytes.HasPrefix(content, []byte("RIFF")) {
		return content
	}
	if strings.HasPrefix(mimetype.Detect(content).String(), "audio/") {
		return content
	}
	if data, err := decodeBase64(content); err == nil && len(data) > 0 {
		return data
	}
	return content
}

func decodeBase64(content []byte) ([]byte, error) {
	compact := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, content)
	return base64.StdEncoding.DecodeString(string(compact))
}
