package interfaces

// MailboxGateway is everything the workflow needs from the remote mailbox.
// The gateway is the single source of truth; Move is the atomic claim primitive.
type MailboxGateway interface {
	IMAPMailbox
	MailSender
}
