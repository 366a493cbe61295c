package media

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/audiolyze/stage/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logger.New(logger.Config{Level: slog.LevelError})
	store, err := NewStore(t.TempDir(), log)
	require.NoError(t, err)
	return store
}

func TestSaveAndServe(t *testing.T) {
	store := newTestStore(t)

	filename, err := store.Save(strings.NewReader("audio-bytes"), "track.mp3")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(filename, ".mp3"))
	require.NotEqual(t, "track.mp3", filename, "filename must be opaque")

	path, ok := store.Path(filename)
	require.True(t, ok)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "audio-bytes", string(data))
}

func TestPathRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"", "../secret", "a/b.mp3", ".hidden", "..", filepath.Join("..", "x")} {
		_, ok := store.Path(name)
		require.False(t, ok, "expected %q to be rejected", name)
	}
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)

	filename, err := store.Save(strings.NewReader("x"), "a.wav")
	require.NoError(t, err)

	store.Remove(filename)
	_, ok := store.Path(filename)
	require.False(t, ok)

	// Removing again is a no-op.
	store.Remove(filename)
}

func TestFilenameFromURL(t *testing.T) {
	store := newTestStore(t)

	name, ok := store.FilenameFromURL("/rooms/uploads/abc123.mp3")
	require.True(t, ok)
	require.Equal(t, "abc123.mp3", name)

	_, ok = store.FilenameFromURL("https://ex/t.mp3")
	require.False(t, ok)

	_, ok = store.FilenameFromURL("/rooms/uploads/../etc/passwd")
	require.False(t, ok)
}
