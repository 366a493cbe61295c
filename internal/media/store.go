// Package media is the blob store for host-uploaded audio: put bytes,
// get a URL that serves them back, delete on room destruction.
package media

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/audiolyze/stage/internal/logger"
)

// MountPath is the URL prefix uploaded files are served under.
const MountPath = "/rooms/uploads/"

// Store persists uploaded audio under a single directory with opaque
// server-generated filenames.
type Store struct {
	dir    string
	logger *logger.Logger
}

// NewStore creates the upload directory if needed and returns a Store over it.
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: log.WithComponent("media_store")}, nil
}

// Save writes the blob under a fresh opaque filename, keeping the original
// extension so clients get a sensible content type back.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".mp3"
	}
	filename := strings.ReplaceAll(uuid.New().String(), "-", "")[:16] + ext

	f, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing upload file: %w", err)
	}

	s.logger.Debug("upload stored", slog.String("filename", filename))
	return filename, nil
}

// Path resolves a stored filename to its on-disk path. Filenames containing
// path separators or traversal are rejected.
func (s *Store) Path(filename string) (string, bool) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", false
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Remove deletes a stored file. Best effort: a missing file is not an error.
func (s *Store) Remove(filename string) {
	if filename == "" || filename != filepath.Base(filename) {
		return
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove upload", slog.String("filename", filename), slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("upload removed", slog.String("filename", filename))
}

// URL returns the serving URL for a stored filename.
func (s *Store) URL(filename string) string {
	return MountPath + filename
}

// FilenameFromURL extracts the stored filename from a serving URL,
// reporting whether the URL points into this store's mount.
func (s *Store) FilenameFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, MountPath) {
		return "", false
	}
	name := strings.TrimPrefix(url, MountPath)
	if name == "" || name != filepath.Base(name) {
		return "", false
	}
	return name, true
}
