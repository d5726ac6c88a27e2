package interfaces

import (
	"context"

	"github.com/customeros/voicemail-transcriber/internal/models"
)

type MailSender interface {
	Send(ctx context.Context, message *models.OutgoingMessage) error
}
