package voicemail

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/voicemail-transcriber/interfaces"
	"github.com/customeros/voicemail-transcriber/internal/enum"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

type CoordinatorConfig struct {
	VoicemailSender string
	MaxEmailsPerRun int
}

// RunCoordinator executes one run at a time: fetch candidates, process them
// sequentially, summarize.
type RunCoordinator struct {
	cfg       CoordinatorConfig
	mailbox   interfaces.IMAPMailbox
	folders   *FolderStateMachine
	processor Processor
	log       logger.Logger

	running atomic.Bool
	stopped atomic.Bool

	mu   sync.RWMutex
	last *models.RunSummary
}

func NewRunCoordinator(cfg CoordinatorConfig, mailbox interfaces.IMAPMailbox, folders *FolderStateMachine, processor Processor, log logger.Logger) *RunCoordinator {
	return &RunCoordinator{
		cfg:       cfg,
		mailbox:   mailbox,
		folders:   folders,
		processor: processor,
		log:       log,
	}
}

// Stop asks the current and any later run to end before the next message.
// A message already being processed always runs to its end.
func (c *RunCoordinator) Stop() {
	if c.stopped.CompareAndSwap(false, true) {
		c.log.Info("Stop requested, finishing current message")
	}
}

func (c *RunCoordinator) Running() bool {
	return c.running.Load()
}

// LastSummary returns the summary of the most recent finished run.
func (c *RunCoordinator) LastSummary() (models.RunSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return models.RunSummary{}, false
	}
	return *c.last, true
}

// Run processes the unread voicemails currently in the source folder.
// It returns ErrRunInProgress when another run has not finished yet.
func (c *RunCoordinator) Run(ctx context.Context) (models.RunSummary, error) {
	if !c.running.CompareAndSwap(false, true) {
		c.log.Warn("Previous run still in progress, skipping")
		return models.RunSummary{}, mailerrors.ErrRunInProgress
	}
	defer c.running.Store(false)

	runId := uuid.New().String()
	ctx = utils.WithRunId(ctx, runId)
	span, ctx := opentracing.StartSpanFromContext(ctx, "RunCoordinator.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	startedAt := utils.Now()
	summary := models.RunSummary{
		RunID:     runId,
		StartedAt: startedAt,
		Outcomes:  make(map[string]int),
	}

	c.log.Info("Starting transcription run")
	c.folders.ResetCache()

	candidates, err := c.candidates(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		c.log.Errorf("Could not fetch voicemails: %v", err)
		summary.Duration = time.Since(startedAt)
		c.store(summary)
		return summary, err
	}
	summary.Candidates = len(candidates)

	if len(candidates) == 0 {
		c.log.Info("No new voicemail emails found")
	} else {
		c.log.Infof("Found %d voicemail emails with audio attachments", len(candidates))
	}

	for i, message := range candidates {
		if c.stopRequested(ctx) {
			c.log.Infof("Stopping run, %d messages left for the next run", len(candidates)-i)
			summary.Stopped = true
			break
		}

		c.log.Infof("Message %d/%d", i+1, len(candidates))
		outcome := c.processor.Process(context.WithoutCancel(ctx), message)
		summary.Outcomes[outcome.String()]++
		switch outcome.Counter() {
		case enum.CounterProcessed:
			summary.Processed++
		case enum.CounterSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	summary.Duration = time.Since(startedAt)
	span.SetTag("processed", summary.Processed)
	span.SetTag("skipped", summary.Skipped)
	span.SetTag("failed", summary.Failed)
	c.log.Infof("Run completed in %s: %d processed, %d skipped, %d failed",
		utils.FormatDuration(summary.Duration), summary.Processed, summary.Skipped, summary.Failed)

	c.store(summary)
	return summary, nil
}

// candidates returns the newest unread messages from the voicemail sender that carry audio.
func (c *RunCoordinator) candidates(ctx context.Context) ([]*models.VoicemailMessage, error) {
	filter := models.MessageFilter{
		UnreadOnly: true,
		From:       c.cfg.VoicemailSender,
	}
	messages, err := c.mailbox.Query(ctx, c.folders.SourceFolder(), filter, c.cfg.MaxEmailsPerRun)
	if err != nil {
		return nil, err
	}

	withAudio := make([]*models.VoicemailMessage, 0, len(messages))
	for _, message := range messages {
		// FROM search is a substring match on the server
		if !utils.SameEmailAddress(message.FromAddress, c.cfg.VoicemailSender) {
			continue
		}
		if HasAudio(message) {
			withAudio = append(withAudio, message)
		}
	}
	return withAudio, nil
}

func (c *RunCoordinator) stopRequested(ctx context.Context) bool {
	return c.stopped.Load() || ctx.Err() != nil
}

func (c *RunCoordinator) store(summary models.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &summary
}
