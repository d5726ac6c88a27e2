package imap

import (
	"context"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

// Move relocates message into destination. UIDs are per folder, so the
// returned handle is looked up again in the destination by Message-Id.
// When that lookup fails after a successful move, the error wraps
// ErrMovedUnlocated and the returned handle has no UID.
func (s *IMAPService) Move(ctx context.Context, message *models.VoicemailMessage, destination models.Folder) (*models.VoicemailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.Move")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	tracing.TagMessage(span, message.ID)
	span.SetTag("folder.from", message.Folder.Path)
	span.SetTag("folder.to", destination.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClient(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if _, err = s.selectFolder(ctx, c, message.Folder.Path, false); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(message.UID)

	c.Timeout = commandTimeout
	err = c.UidMove(seqSet, destination.Path)
	c.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "error moving uid %d from '%s' to '%s'", message.UID, message.Folder.Path, destination.Path)
	}

	moved := *message
	moved.Folder = destination
	moved.UID = 0

	uid, err := s.locate(ctx, c, destination, message)
	if err != nil {
		tracing.TraceErr(span, err)
		return &moved, errors.Wrap(mailerrors.ErrMovedUnlocated, err.Error())
	}
	moved.UID = uid
	return &moved, nil
}

func (s *IMAPService) MarkRead(ctx context.Context, message *models.VoicemailMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.MarkRead")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	tracing.TagMessage(span, message.ID)
	tracing.TagFolder(span, message.Folder.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.addFlag(ctx, message, imap.SeenFlag); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	message.Seen = true
	return nil
}

// Delete flags the message \Deleted and expunges the folder.
func (s *IMAPService) Delete(ctx context.Context, message *models.VoicemailMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.Delete")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	tracing.TagMessage(span, message.ID)
	tracing.TagFolder(span, message.Folder.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.addFlag(ctx, message, imap.DeletedFlag); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	c, err := s.getClient(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	c.Timeout = commandTimeout
	err = c.Expunge(nil)
	c.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "error expunging '%s'", message.Folder.Path)
	}
	return nil
}

func (s *IMAPService) addFlag(ctx context.Context, message *models.VoicemailMessage, flag string) error {
	if message.UID == 0 {
		return errors.Wrapf(mailerrors.ErrMessageGone, "no uid for message %s in '%s'", message.ID, message.Folder.Path)
	}

	c, err := s.getClient(ctx)
	if err != nil {
		return err
	}
	if _, err = s.selectFolder(ctx, c, message.Folder.Path, false); err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(message.UID)

	c.Timeout = commandTimeout
	err = c.UidStore(seqSet, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{flag}, nil)
	c.Timeout = 0
	if err != nil {
		return errors.Wrapf(err, "error setting %s on uid %d in '%s'", flag, message.UID, message.Folder.Path)
	}
	return nil
}

// locate finds the newest UID in folder carrying the message's Message-Id.
func (s *IMAPService) locate(ctx context.Context, c *client.Client, folder models.Folder, message *models.VoicemailMessage) (uint32, error) {
	if _, err := s.selectFolder(ctx, c, folder.Path, true); err != nil {
		return 0, err
	}

	criteria := imap.NewSearchCriteria()
	if message.ID != "" {
		// servers differ on whether the angle brackets are matched
		criteria.Header.Add("Message-Id", utils.NormalizeMessageID(message.ID))
	} else {
		criteria.Header.Add("Subject", message.Subject)
	}

	c.Timeout = commandTimeout
	uids, err := c.UidSearch(criteria)
	c.Timeout = 0
	if err != nil {
		return 0, errors.Wrapf(err, "error searching '%s' for moved message", folder.Path)
	}

	uids = newestFirst(uids, 1)
	if len(uids) == 0 {
		return 0, errors.Wrapf(mailerrors.ErrMessageGone, "message %s not found in '%s' after move", message.ID, folder.Path)
	}
	return uids[0], nil
}
