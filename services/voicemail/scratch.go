package voicemail

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
)

// scratchDir holds the audio files re-attached to one outgoing message.
type scratchDir struct {
	path   string
	log    logger.Logger
	once   sync.Once
	err    error
	remove func(string) error
}

func newScratchDir(root string, log logger.Logger) (*scratchDir, error) {
	path, err := os.MkdirTemp(root, "voicemail-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scratch directory")
	}
	return &scratchDir{path: path, log: log, remove: os.RemoveAll}, nil
}

// write stores each attachment under its base name in its own numbered
// subdirectory, so names that differ only by path never collide.
func (d *scratchDir) write(audio []models.AudioAttachment) ([]string, error) {
	paths := make([]string, 0, len(audio))
	for i, attachment := range audio {
		dir := filepath.Join(d.path, strconv.Itoa(i))
		if err := os.Mkdir(dir, 0o700); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", dir)
		}
		path := filepath.Join(dir, filepath.Base(attachment.Filename))
		if err := os.WriteFile(path, attachment.Data, 0o600); err != nil {
			return nil, errors.Wrapf(err, "failed to write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Remove deletes the directory once. Failures are logged, never returned to the workflow.
func (d *scratchDir) Remove() {
	d.once.Do(func() {
		if err := d.remove(d.path); err != nil {
			d.err = errors.Wrap(mailerrors.ErrCleanup, err.Error())
			d.log.Warnf("Could not remove scratch directory %s: %v", d.path, err)
		}
	})
}
