package interfaces

import (
	"context"

	"github.com/customeros/voicemail-transcriber/internal/models"
)

// SpeechToText turns audio bytes into text. It fails on unreadable audio or engine errors.
type SpeechToText interface {
	Transcribe(ctx context.Context, request models.TranscriptionRequest) (string, error)
}
