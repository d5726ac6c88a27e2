package imap

import (
	"context"
	"sort"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
)

// ListSubfolders lists the direct children of parent. The zero Folder lists top-level folders.
func (s *IMAPService) ListSubfolders(ctx context.Context, parent models.Folder) ([]models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.ListSubfolders")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	tracing.TagFolder(span, parent.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClient(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	pattern := "%"
	if !parent.IsRoot() {
		pattern = parent.Path + s.delimiterOr(parent.Delimiter) + "%"
	}

	infos, err := s.list(c, pattern)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "error listing subfolders of '%s'", parent.String())
	}

	folders := make([]models.Folder, 0, len(infos))
	for _, info := range infos {
		if hasAttribute(info.Attributes, imap.NoSelectAttr) {
			s.log.Debugf("Listing non-selectable folder %s", info.Name)
		}
		delimiter := info.Delimiter
		if delimiter == "" {
			delimiter = s.delimiterOr("")
		}
		folders = append(folders, models.FolderFromPath(info.Name, delimiter))
	}

	sort.Slice(folders, func(i, j int) bool {
		return folders[i].Path < folders[j].Path
	})

	span.SetTag("folders.count", len(folders))
	return folders, nil
}

// CreateSubfolder creates name under parent and returns the new folder.
func (s *IMAPService) CreateSubfolder(ctx context.Context, parent models.Folder, name string) (models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.CreateSubfolder")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	tracing.TagFolder(span, parent.Path)
	span.SetTag("folder.name", name)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClient(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return models.Folder{}, err
	}

	parent.Delimiter = s.delimiterOr(parent.Delimiter)
	folder := parent.Child(name)

	c.Timeout = commandTimeout
	err = c.Create(folder.Path)
	c.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return models.Folder{}, errors.Wrapf(err, "error creating folder '%s'", folder.Path)
	}

	s.log.Infof("Created folder: %s", folder.Path)
	return folder, nil
}

// selectFolder selects a folder on the IMAP server
func (s *IMAPService) selectFolder(ctx context.Context, c *client.Client, folder string, readOnly bool) (*imap.MailboxStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.selectFolder")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	tracing.TagFolder(span, folder)

	c.Timeout = commandTimeout
	mbox, err := c.Select(folder, readOnly)
	c.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "error selecting folder '%s'", folder)
	}

	span.SetTag("messages.total", mbox.Messages)
	span.SetTag("messages.unseen", mbox.Unseen)
	return mbox, nil
}

func (s *IMAPService) list(c *client.Client, pattern string) ([]*imap.MailboxInfo, error) {
	c.Timeout = commandTimeout
	defer func() { c.Timeout = 0 }()

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", pattern, mailboxes)
	}()

	var infos []*imap.MailboxInfo
	for m := range mailboxes {
		infos = append(infos, m)
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return infos, nil
}

func (s *IMAPService) delimiterOr(delimiter string) string {
	if delimiter != "" {
		return delimiter
	}
	if s.delimiter != "" {
		return s.delimiter
	}
	return defaultDelimiter
}

func hasAttribute(attributes []string, attr string) bool {
	for _, a := range attributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}
