package voicemail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/voicemail-transcriber/internal/models"
)

func TestScratchDir_WriteKeepsSameBaseNamesApart(t *testing.T) {
	scratch, err := newScratchDir(t.TempDir(), getLogger())
	require.NoError(t, err)
	defer scratch.Remove()

	paths, err := scratch.write([]models.AudioAttachment{
		{Filename: "a/x.wav", Data: []byte("first")},
		{Filename: "b/x.wav", Data: []byte("second")},
	})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.NotEqual(t, paths[0], paths[1])

	for i, want := range []string{"first", "second"} {
		assert.Equal(t, "x.wav", filepath.Base(paths[i]))
		data, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestScratchDir_RemoveDeletesEverything(t *testing.T) {
	root := t.TempDir()
	scratch, err := newScratchDir(root, getLogger())
	require.NoError(t, err)

	_, err = scratch.write([]models.AudioAttachment{{Filename: "x.wav", Data: []byte("RIFF")}})
	require.NoError(t, err)

	scratch.Remove()
	scratch.Remove()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, scratch.err)
}
