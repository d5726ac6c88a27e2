package voicemail

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/voicemail-transcriber/interfaces"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
	"github.com/customeros/voicemail-transcriber/internal/utils"
)

type FolderNames struct {
	Source     string
	Root       string
	Processing string
	Done       string
}

// FolderStateMachine moves messages Source -> Processing -> Done.
// The move into Processing is the lock: a message outside Source is not picked up again.
type FolderStateMachine struct {
	mailbox interfaces.IMAPMailbox
	names   FolderNames
	log     logger.Logger

	mu      sync.Mutex
	cache   map[string]models.Folder
	folders *models.FolderTriple
}

func NewFolderStateMachine(mailbox interfaces.IMAPMailbox, names FolderNames, log logger.Logger) *FolderStateMachine {
	return &FolderStateMachine{
		mailbox: mailbox,
		names:   names,
		log:     log,
		cache:   make(map[string]models.Folder),
	}
}

// ResetCache forgets resolved folders so the next run looks them up again.
func (f *FolderStateMachine) ResetCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]models.Folder)
	f.folders = nil
}

func (f *FolderStateMachine) SourceFolder() models.Folder {
	return models.Folder{Name: f.names.Source, Path: f.names.Source}
}

// EnsureFolder returns the child of parent called name, creating it when missing.
func (f *FolderStateMachine) EnsureFolder(ctx context.Context, parent models.Folder, name string) (models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FolderStateMachine.EnsureFolder")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagFolder(span, parent.Path)
	span.SetTag("folder.name", name)

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ensureFolder(ctx, parent, name)
}

func (f *FolderStateMachine) ensureFolder(ctx context.Context, parent models.Folder, name string) (models.Folder, error) {
	key := parent.Path + "\x00" + name
	if folder, ok := f.cache[key]; ok {
		return folder, nil
	}

	existing, err := f.mailbox.ListSubfolders(ctx, parent)
	if err != nil {
		return models.Folder{}, errors.Wrapf(err, "failed to list folders under '%s'", parent.String())
	}
	for _, folder := range existing {
		if folder.Name == name {
			f.cache[key] = folder
			return folder, nil
		}
	}

	folder, err := f.mailbox.CreateSubfolder(ctx, parent, name)
	if err != nil {
		return models.Folder{}, errors.Wrapf(err, "failed to create folder '%s' under '%s'", name, parent.String())
	}
	f.log.Infof("Created folder: %s", folder.Path)
	f.cache[key] = folder
	return folder, nil
}

// Folders resolves the Source, Processing and Done folders once per run.
func (f *FolderStateMachine) Folders(ctx context.Context) (models.FolderTriple, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FolderStateMachine.Folders")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.folders != nil {
		return *f.folders, nil
	}

	root, err := f.ensureFolder(ctx, models.Folder{}, f.names.Root)
	if err != nil {
		tracing.TraceErr(span, err)
		return models.FolderTriple{}, err
	}
	processing, err := f.ensureFolder(ctx, root, f.names.Processing)
	if err != nil {
		tracing.TraceErr(span, err)
		return models.FolderTriple{}, err
	}
	done, err := f.ensureFolder(ctx, root, f.names.Done)
	if err != nil {
		tracing.TraceErr(span, err)
		return models.FolderTriple{}, err
	}

	f.folders = &models.FolderTriple{
		Source:     f.SourceFolder(),
		Root:       root,
		Processing: processing,
		Done:       done,
	}
	return *f.folders, nil
}

// Claim moves the message into Processing. On ErrClaim the message stays where it was.
// ErrClaimStuck means it left Source but could not be found again in Processing.
func (f *FolderStateMachine) Claim(ctx context.Context, message *models.VoicemailMessage) (*models.ClaimToken, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FolderStateMachine.Claim")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMessage(span, message.ID)

	folders, err := f.Folders(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(mailerrors.ErrClaim, err.Error())
	}

	moved, err := f.mailbox.Move(ctx, message, folders.Processing)
	if errors.Is(err, mailerrors.ErrMovedUnlocated) {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(mailerrors.ErrClaimStuck, err.Error())
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(mailerrors.ErrClaim, err.Error())
	}

	f.log.Debugf("Claimed %s into %s", message.ID, folders.Processing.Path)
	return models.NewClaimToken(moved, utils.Now()), nil
}

// Complete marks the claimed message read, then moves it to Done.
// The token is spent even when completion fails.
func (f *FolderStateMachine) Complete(ctx context.Context, token *models.ClaimToken) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FolderStateMachine.Complete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if token == nil || token.Consumed() {
		err := mailerrors.ErrClaimConsumed
		tracing.TraceErr(span, err)
		return err
	}
	token.Consume()
	tracing.TagMessage(span, token.Message.ID)

	folders, err := f.Folders(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(mailerrors.ErrComplete, err.Error())
	}

	if err = f.mailbox.MarkRead(ctx, token.Message); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(mailerrors.ErrComplete, err.Error())
	}

	_, err = f.mailbox.Move(ctx, token.Message, folders.Done)
	if errors.Is(err, mailerrors.ErrMovedUnlocated) {
		// the message is in Done and its UID is never needed again
		f.log.Warnf("Moved %s to %s but could not locate it there: %v", token.Message.ID, folders.Done.Path, err)
		return nil
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(mailerrors.ErrComplete, err.Error())
	}
	return nil
}
