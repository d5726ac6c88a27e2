package voicemail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"

	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
)

const (
	testSender   = "unityconnection@hosted-comm-service.a1.net"
	testTarget   = "office@example.com"
	testMarker   = "--- AUTOMATISCHES TRANSKRIPT ---"
	testSubject  = "Transkription: Sprachnachricht von %s"
	inbox        = "INBOX"
	processingFP = "Transkription/In Bearbeitung"
	doneFP       = "Transkription/Bereits transkripiert"
	sentFP       = "Sent"
)

type sentMessage struct {
	message     models.OutgoingMessage
	attachments map[string][]byte
}

// fakeMailbox is an in-memory mailbox honoring move semantics: a moved
// message gets a new UID in its destination folder.
type fakeMailbox struct {
	mu      sync.Mutex
	nextUID uint32
	known   map[string]bool
	folders map[string][]*models.VoicemailMessage

	created []string
	calls   []string
	sent    []sentMessage

	failMoveTo   map[string]bool
	unlocatedIn  map[string]bool
	failList     bool
	failQuery    bool
	failSend     bool
	failMarkRead bool
	failSentLook bool
	fileSentCopy bool
}

func newFakeMailbox(folders ...string) *fakeMailbox {
	m := &fakeMailbox{
		known:      make(map[string]bool),
		folders:    make(map[string][]*models.VoicemailMessage),
		failMoveTo:  make(map[string]bool),
		unlocatedIn: make(map[string]bool),
	}
	m.known[inbox] = true
	m.known[sentFP] = true
	for _, f := range folders {
		m.known[f] = true
	}
	return m
}

func (m *fakeMailbox) add(folder string, message *models.VoicemailMessage) *models.VoicemailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUID++
	message.UID = m.nextUID
	message.Folder = models.FolderFromPath(folder, "/")
	m.known[folder] = true
	m.folders[folder] = append(m.folders[folder], message)
	cp := *message
	return &cp
}

func (m *fakeMailbox) in(folder string) []*models.VoicemailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.VoicemailMessage, 0, len(m.folders[folder]))
	for _, msg := range m.folders[folder] {
		cp := *msg
		out = append(out, &cp)
	}
	return out
}

func (m *fakeMailbox) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *fakeMailbox) Authenticate(_ context.Context) error { return nil }

func (m *fakeMailbox) Close() error { return nil }

func (m *fakeMailbox) Query(_ context.Context, folder models.Folder, filter models.MessageFilter, limit int) ([]*models.VoicemailMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "query:"+folder.Path)

	if m.failQuery {
		return nil, errors.New("connection reset")
	}
	if folder.Path == sentFP && m.failSentLook {
		return nil, errors.New("sent folder unavailable")
	}

	var out []*models.VoicemailMessage
	for _, msg := range m.folders[folder.Path] {
		if filter.UnreadOnly && msg.Seen {
			continue
		}
		if filter.From != "" && !strings.EqualFold(filter.From, msg.FromAddress) {
			continue
		}
		cp := *msg
		if filter.EnvelopeOnly {
			cp.Attachments = nil
			cp.BodyText = ""
			cp.BodyHTML = ""
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID > out[j].UID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *fakeMailbox) ListSubfolders(_ context.Context, parent models.Folder) ([]models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list:"+parent.Path)

	if m.failList {
		return nil, errors.New("list failed")
	}

	var out []models.Folder
	for path := range m.known {
		rest := path
		if !parent.IsRoot() {
			if !strings.HasPrefix(path, parent.Path+"/") {
				continue
			}
			rest = strings.TrimPrefix(path, parent.Path+"/")
		}
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, models.FolderFromPath(path, "/"))
	}
	return out, nil
}

func (m *fakeMailbox) CreateSubfolder(_ context.Context, parent models.Folder, name string) (models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent.Delimiter = "/"
	folder := parent.Child(name)
	if m.known[folder.Path] {
		return models.Folder{}, fmt.Errorf("folder %s already exists", folder.Path)
	}
	m.known[folder.Path] = true
	m.created = append(m.created, folder.Path)
	m.calls = append(m.calls, "create:"+folder.Path)
	return folder, nil
}

func (m *fakeMailbox) Move(_ context.Context, message *models.VoicemailMessage, destination models.Folder) (*models.VoicemailMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "move:"+message.ID+":"+destination.Path)

	if m.failMoveTo[destination.Path] {
		return nil, errors.Errorf("move to %s refused", destination.Path)
	}

	idx := m.indexOf(message)
	if idx < 0 {
		return nil, mailerrors.ErrMessageGone
	}
	src := message.Folder.Path
	stored := m.folders[src][idx]
	m.folders[src] = append(m.folders[src][:idx], m.folders[src][idx+1:]...)

	m.nextUID++
	stored.UID = m.nextUID
	stored.Folder = destination
	m.known[destination.Path] = true
	m.folders[destination.Path] = append(m.folders[destination.Path], stored)

	cp := *stored
	if m.unlocatedIn[destination.Path] {
		cp.UID = 0
		return &cp, errors.Wrapf(mailerrors.ErrMovedUnlocated, "search in %s came back empty", destination.Path)
	}
	return &cp, nil
}

func (m *fakeMailbox) MarkRead(_ context.Context, message *models.VoicemailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "markread:"+message.ID+":"+message.Folder.Path)

	if m.failMarkRead {
		return errors.New("store failed")
	}
	idx := m.indexOf(message)
	if idx < 0 {
		return mailerrors.ErrMessageGone
	}
	m.folders[message.Folder.Path][idx].Seen = true
	message.Seen = true
	return nil
}

func (m *fakeMailbox) Delete(_ context.Context, message *models.VoicemailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete:"+message.Folder.Path+":"+message.Subject)

	idx := m.indexOf(message)
	if idx < 0 {
		return mailerrors.ErrMessageGone
	}
	path := message.Folder.Path
	m.folders[path] = append(m.folders[path][:idx], m.folders[path][idx+1:]...)
	return nil
}

func (m *fakeMailbox) Send(_ context.Context, message *models.OutgoingMessage) error {
	attachments := make(map[string][]byte)
	for _, path := range message.AttachmentPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		attachments[filepath.Base(path)] = data
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "send:"+message.Subject)

	if m.failSend {
		return errors.Wrap(mailerrors.ErrPublish, "smtp unavailable")
	}
	m.sent = append(m.sent, sentMessage{message: *message, attachments: attachments})

	if m.fileSentCopy {
		m.nextUID++
		m.folders[sentFP] = append(m.folders[sentFP], &models.VoicemailMessage{
			ID:          fmt.Sprintf("<sent-%d@example.com>", m.nextUID),
			UID:         m.nextUID,
			Folder:      models.Folder{Name: sentFP, Path: sentFP},
			Subject:     message.Subject,
			FromAddress: message.FromAddress,
			Seen:        true,
		})
	}
	return nil
}

func (m *fakeMailbox) indexOf(message *models.VoicemailMessage) int {
	for i, stored := range m.folders[message.Folder.Path] {
		if stored.UID == message.UID {
			return i
		}
	}
	return -1
}

type mockSpeechToText struct {
	mock.Mock
}

func (m *mockSpeechToText) Transcribe(ctx context.Context, request models.TranscriptionRequest) (string, error) {
	args := m.Called(ctx, request)
	return args.String(0), args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func testFolderNames() FolderNames {
	return FolderNames{
		Source:     inbox,
		Root:       "Transkription",
		Processing: "In Bearbeitung",
		Done:       "Bereits transkripiert",
	}
}

var testReceivedAt = time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)

func newVoicemail(id, subject string, wavs ...string) *models.VoicemailMessage {
	message := &models.VoicemailMessage{
		ID:          id,
		Subject:     subject,
		FromAddress: testSender,
		ReceivedAt:  testReceivedAt,
		BodyText:    "Sie haben eine neue Sprachnachricht.",
	}
	for _, name := range wavs {
		message.Attachments = append(message.Attachments, models.Attachment{
			Filename:    name,
			ContentType: "audio/wav",
			Content:     []byte("RIFF" + name),
			Encoding:    models.AttachmentEncodingRaw,
		})
	}
	return message
}
