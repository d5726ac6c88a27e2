package voicemail

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/voicemail-transcriber/internal/models"
)

func TestAttachmentExtractor_FilterAndDedup(t *testing.T) {
	message := &models.VoicemailMessage{
		ID: "<m1@a1.net>",
		Attachments: []models.Attachment{
			{Filename: "VoiceMessage.WAV", Content: []byte("first"), Encoding: models.AttachmentEncodingRaw},
			{Filename: "VoiceMessage.WAV", Content: []byte("second"), Encoding: models.AttachmentEncodingRaw},
			{Filename: "notes.pdf", Content: []byte("%PDF"), Encoding: models.AttachmentEncodingRaw},
			{Filename: "other.wav.txt", Content: []byte("text"), Encoding: models.AttachmentEncodingRaw},
			{Filename: "second.wav", Content: []byte(base64.StdEncoding.EncodeToString([]byte("audio"))), Encoding: models.AttachmentEncodingBase64},
		},
	}

	audio := NewAttachmentExtractor(getLogger()).Extract(context.Background(), message)

	require.Len(t, audio, 2)
	assert.Equal(t, models.AudioAttachment{Filename: "VoiceMessage.WAV", Data: []byte("first")}, audio[0])
	assert.Equal(t, models.AudioAttachment{Filename: "second.wav", Data: []byte("audio")}, audio[1])
}

func TestAttachmentExtractor_EncodingNormalization(t *testing.T) {
	wav := []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00")
	encoded := base64.StdEncoding.EncodeToString(wav)
	wrapped := encoded[:10] + "\r\n" + encoded[10:]

	extractor := NewAttachmentExtractor(getLogger())
	for name, attachment := range map[string]models.Attachment{
		"raw":            {Filename: "a.wav", Content: wav, Encoding: models.AttachmentEncodingRaw},
		"base64":         {Filename: "a.wav", Content: []byte(encoded), Encoding: models.AttachmentEncodingBase64},
		"wrapped base64": {Filename: "a.wav", Content: []byte(wrapped), Encoding: models.AttachmentEncodingBase64},
		"sniffed raw":    {Filename: "a.wav", Content: wav, Encoding: models.AttachmentEncodingUnknown},
		"sniffed base64": {Filename: "a.wav", Content: []byte(encoded), Encoding: models.AttachmentEncodingUnknown},
	} {
		t.Run(name, func(t *testing.T) {
			audio := extractor.Extract(context.Background(), &models.VoicemailMessage{Attachments: []models.Attachment{attachment}})
			require.Len(t, audio, 1)
			assert.Equal(t, wav, audio[0].Data)
		})
	}
}

func TestAttachmentExtractor_UndecodableIsDropped(t *testing.T) {
	message := &models.VoicemailMessage{
		Attachments: []models.Attachment{
			{Filename: "broken.wav", Content: []byte("!!! not base64 !!!"), Encoding: models.AttachmentEncodingBase64},
		},
	}
	assert.Empty(t, NewAttachmentExtractor(getLogger()).Extract(context.Background(), message))
}

func TestAttachmentExtractor_UnknownFallsBackToRaw(t *testing.T) {
	content := []byte("??? binary-ish ???")
	message := &models.VoicemailMessage{
		Attachments: []models.Attachment{{Filename: "odd.wav", Content: content}},
	}

	audio := NewAttachmentExtractor(getLogger()).Extract(context.Background(), message)
	require.Len(t, audio, 1)
	assert.Equal(t, content, audio[0].Data)
}

func TestHasAudio(t *testing.T) {
	assert.True(t, HasAudio(&models.VoicemailMessage{Attachments: []models.Attachment{{Filename: "x.Wav"}}}))
	assert.False(t, HasAudio(&models.VoicemailMessage{Attachments: []models.Attachment{{Filename: "x.mp3"}}}))
	assert.False(t, HasAudio(&models.VoicemailMessage{}))
}
