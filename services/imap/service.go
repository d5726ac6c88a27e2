package imap

import (
	"context"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/voicemail-transcriber/config"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
)

const (
	dialTimeout      = 30 * time.Second
	commandTimeout   = 30 * time.Second
	fetchTimeout     = 120 * time.Second
	logoutTimeout    = 5 * time.Second
	defaultDelimiter = "/"
)

// IMAPService is a single-account IMAP connection. Every command runs under
// the same mutex because an IMAP session has exactly one selected folder.
type IMAPService struct {
	cfg       *config.ImapConfig
	log       logger.Logger
	client    *client.Client
	delimiter string
	mu        sync.Mutex
}

func NewIMAPService(cfg *config.ImapConfig, log logger.Logger) *IMAPService {
	return &IMAPService{
		cfg: cfg,
		log: log,
	}
}

// Authenticate connects and logs in. A failure here is fatal for the process.
func (s *IMAPService) Authenticate(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.Authenticate")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.disconnect()
	}

	c, err := s.connect(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(mailerrors.ErrAuthentication, err.Error())
	}
	s.client = c

	delimiter, err := s.hierarchyDelimiter(c)
	if err != nil {
		s.log.Warnf("Could not determine folder delimiter, using '%s': %v", defaultDelimiter, err)
		delimiter = defaultDelimiter
	}
	s.delimiter = delimiter

	return nil
}

// Delimiter is the folder hierarchy separator learned at login.
func (s *IMAPService) Delimiter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delimiter == "" {
		return defaultDelimiter
	}
	return s.delimiter
}

func (s *IMAPService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnect()
	return nil
}
