package interfaces

import (
	"context"

	"github.com/customeros/voicemail-transcriber/internal/models"
)

type IMAPMailbox interface {
	Authenticate(ctx context.Context) error
	Close() error

	// Query returns up to limit messages, newest first.
	Query(ctx context.Context, folder models.Folder, filter models.MessageFilter, limit int) ([]*models.VoicemailMessage, error)
	ListSubfolders(ctx context.Context, parent models.Folder) ([]models.Folder, error)
	CreateSubfolder(ctx context.Context, parent models.Folder, name string) (models.Folder, error)

	// Move relocates the message and returns its handle in the destination folder.
	Move(ctx context.Context, message *models.VoicemailMessage, destination models.Folder) (*models.VoicemailMessage, error)
	MarkRead(ctx context.Context, message *models.VoicemailMessage) error
	Delete(ctx context.Context, message *models.VoicemailMessage) error
}
