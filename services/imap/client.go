package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
)

// connect establishes a connection to the IMAP server and logs in
func (s *IMAPService) connect(ctx context.Context) (*client.Client, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.connect")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	span.SetTag("server", s.cfg.Host)
	span.SetTag("port", s.cfg.Port)
	span.SetTag("tls", s.cfg.TLS)

	serverAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error
	if s.cfg.TLS {
		c, err = client.DialWithDialerTLS(dialer, serverAddr, &tls.Config{ServerName: s.cfg.Host})
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to connect to %s", serverAddr)
	}

	caps, err := c.Capability()
	if err != nil {
		_ = c.Logout()
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to get capabilities")
	}
	s.log.Debugf("IMAP server capabilities: %v", caps)
	span.SetTag("server.capabilities", fmt.Sprintf("%v", caps))

	c.Timeout = commandTimeout
	if err = c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to login as %s", s.cfg.Username)
	}
	c.Timeout = 0

	s.log.Infof("Connected to IMAP server %s as %s", serverAddr, s.cfg.Username)
	return c, nil
}

// getClient returns the live client, reconnecting once when NOOP fails.
// Callers must hold s.mu.
func (s *IMAPService) getClient(ctx context.Context) (*client.Client, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.getClient")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)

	if s.client == nil {
		err := mailerrors.ErrNotConnected
		tracing.TraceErr(span, err)
		return nil, err
	}

	err := s.client.Noop()
	if err == nil {
		return s.client, nil
	}
	s.log.Warnf("Existing IMAP connection is broken, reconnecting: %v", err)

	s.disconnect()
	c, err := s.connect(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	s.client = c
	return c, nil
}

// disconnect logs out with a bounded wait. Callers must hold s.mu.
func (s *IMAPService) disconnect() {
	c := s.client
	s.client = nil
	if c == nil {
		return
	}

	c.Timeout = logoutTimeout
	done := make(chan error, 1)
	go func() {
		done <- c.Logout()
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
			s.log.Warnf("Error during IMAP logout: %v", err)
		}
	case <-time.After(logoutTimeout):
		s.log.Warn("IMAP logout timed out")
	}
}

// hierarchyDelimiter asks the server for the folder separator via LIST "" "".
func (s *IMAPService) hierarchyDelimiter(c *client.Client) (string, error) {
	mailboxes := make(chan *imap.MailboxInfo, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "", mailboxes)
	}()

	delimiter := ""
	for m := range mailboxes {
		if m.Delimiter != "" {
			delimiter = m.Delimiter
		}
	}
	if err := <-done; err != nil {
		return "", err
	}
	if delimiter == "" {
		return defaultDelimiter, nil
	}
	return delimiter, nil
}
