package mailbox

import (
	"github.com/customeros/voicemail-transcriber/interfaces"
	"github.com/customeros/voicemail-transcriber/services/imap"
	"github.com/customeros/voicemail-transcriber/services/smtp"
)

// Gateway is the remote mailbox: IMAP for everything stored, SMTP for submission.
type Gateway struct {
	*imap.IMAPService
	*smtp.SMTPClient
}

func NewGateway(imapService *imap.IMAPService, smtpClient *smtp.SMTPClient) *Gateway {
	return &Gateway{
		IMAPService: imapService,
		SMTPClient:  smtpClient,
	}
}

var _ interfaces.MailboxGateway = (*Gateway)(nil)
