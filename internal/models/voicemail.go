package models

import (
	"time"
)

// VoicemailMessage is a message as reported by the mailbox gateway.
// ID is the Message-ID header and survives folder moves; UID is only valid inside Folder.
type VoicemailMessage struct {
	ID          string
	UID         uint32
	Folder      Folder
	Subject     string
	FromAddress string
	FromName    string
	ReceivedAt  time.Time
	BodyText    string
	BodyHTML    string
	Seen        bool
	Attachments []Attachment
}

func (m *VoicemailMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// AttachmentEncoding describes the representation of Attachment.Content.
type AttachmentEncoding string

const (
	AttachmentEncodingUnknown AttachmentEncoding = ""
	AttachmentEncodingRaw     AttachmentEncoding = "raw"
	AttachmentEncodingBase64  AttachmentEncoding = "base64"
)

// Attachment is the gateway's view of a message part. Content may be raw bytes or base64 text.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
	Encoding    AttachmentEncoding
}

// AudioAttachment holds decoded audio bytes for a single processor invocation.
type AudioAttachment struct {
	Filename string
	Data     []byte
}

// OutgoingMessage is the republished transcription.
type OutgoingMessage struct {
	FromAddress     string
	ToAddresses     []string
	Subject         string
	BodyText        string
	Headers         map[string]string
	AttachmentPaths []string
}

// MessageFilter narrows a gateway query.
type MessageFilter struct {
	UnreadOnly bool
	From       string
	// EnvelopeOnly skips body and attachment download.
	EnvelopeOnly bool
}
