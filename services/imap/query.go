package imap

import (
	"context"
	"sort"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
)

// Query searches folder and returns up to limit messages, newest first.
// Bodies are fetched with BODY.PEEK[] so querying never marks anything as read.
func (s *IMAPService) Query(ctx context.Context, folder models.Folder, filter models.MessageFilter, limit int) ([]*models.VoicemailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.Query")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	tracing.TagFolder(span, folder.Path)
	tracing.LogObjectAsJson(span, "filter", filter)
	span.LogFields(tracingLog.Int("limit", limit))

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClient(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if _, err = s.selectFolder(ctx, c, folder.Path, true); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	c.Timeout = commandTimeout
	uids, err := c.UidSearch(searchCriteria(filter))
	c.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "error searching folder '%s'", folder.Path)
	}

	uids = newestFirst(uids, limit)
	span.SetTag("messages.found", len(uids))
	if len(uids) == 0 {
		return []*models.VoicemailMessage{}, nil
	}

	messages, err := s.fetchMessages(ctx, c, folder, uids, filter.EnvelopeOnly)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].UID > messages[j].UID
	})
	return messages, nil
}

func searchCriteria(filter models.MessageFilter) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	if filter.UnreadOnly {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	if filter.From != "" {
		criteria.Header.Add("From", filter.From)
	}
	return criteria
}

// newestFirst orders UIDs descending and keeps at most limit of them.
// UIDs grow with arrival order, so the highest UIDs are the newest messages.
func newestFirst(uids []uint32, limit int) []uint32 {
	sorted := make([]uint32, len(uids))
	copy(sorted, uids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] > sorted[j]
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func (s *IMAPService) fetchMessages(ctx context.Context, c *client.Client, folder models.Folder, uids []uint32, envelopeOnly bool) ([]*models.VoicemailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.fetchMessages")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	span.SetTag("envelope_only", envelopeOnly)

	seqSet := new(imap.SeqSet)
	for _, uid := range uids {
		seqSet.AddNum(uid)
	}

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		imap.FetchInternalDate,
	}
	if !envelopeOnly {
		section := &imap.BodySectionName{Peek: true}
		items = append(items, section.FetchItem())
	}

	fetched := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	c.Timeout = fetchTimeout
	go func() {
		done <- c.UidFetch(seqSet, items, fetched)
	}()

	var messages []*models.VoicemailMessage
	for msg := range fetched {
		parsed, err := parseMessage(folder, msg, envelopeOnly)
		if err != nil {
			s.log.Warnf("Skipping message uid %d in %s: %v", msg.Uid, folder.Path, err)
			continue
		}
		messages = append(messages, parsed)
	}
	c.Timeout = 0

	if err := <-done; err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "error fetching messages from '%s'", folder.Path)
	}

	span.SetTag("messages.fetched", len(messages))
	return messages, nil
}
