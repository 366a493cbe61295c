// Package soundcloud resolves third-party audio URLs to metadata and local
// files via yt-dlp. It implements the downloader interface the stage
// pre-fetcher consumes.
package soundcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/audiolyze/stage/internal/logger"
)

// MountPath is the URL prefix downloaded tracks are served under.
const MountPath = "/soundcloud/file/"

// audioExtensions are probed when yt-dlp names the output differently
// than requested.
var audioExtensions = []string{".mp3", ".m4a", ".opus", ".ogg", ".wav"}

// ErrNoTracks is returned when a URL resolves to nothing playable.
var ErrNoTracks = errors.New("no tracks found at this URL")

type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Service shells out to yt-dlp for metadata lookup and audio download.
type Service struct {
	ytdlp           string
	dir             string
	infoTimeout     time.Duration
	downloadTimeout time.Duration
	run             commandRunner
	logger          *logger.Logger
}

// NewService creates the download directory if needed and returns a Service.
func NewService(ytdlpPath, downloadDir string, infoTimeout, downloadTimeout time.Duration, log *logger.Logger) (*Service, error) {
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download dir %s: %w", downloadDir, err)
	}
	return &Service{
		ytdlp:           ytdlpPath,
		dir:             downloadDir,
		infoTimeout:     infoTimeout,
		downloadTimeout: downloadTimeout,
		run:             runCommand,
		logger:          log.WithComponent("soundcloud"),
	}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ResolveInfo fetches metadata for a URL without downloading anything.
// A playlist URL yields one entry per track.
func (s *Service) ResolveInfo(ctx context.Context, url string) (*InfoResult, error) {
	url = strings.TrimSpace(url)
	s.logger.Info("fetching track info", slog.String("url", url))

	ctx, cancel := context.WithTimeout(ctx, s.infoTimeout)
	defer cancel()

	stdout, stderr, err := s.run(ctx, s.ytdlp,
		"--flat-playlist",
		"--dump-json",
		"--no-warnings",
		url,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("metadata lookup timed out: %w", ctx.Err())
		}
		s.logger.Error("yt-dlp info failed", slog.String("stderr", string(stderr)))
		return nil, errors.New("failed to fetch track info, check the URL")
	}

	return parseInfoOutput(url, stdout)
}

// parseInfoOutput parses yt-dlp's JSON-lines output (one object per track).
func parseInfoOutput(url string, stdout []byte) (*InfoResult, error) {
	var entries []ytdlpEntry
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry ytdlpEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, ErrNoTracks
	}

	if len(entries) == 1 {
		entry := entries[0]
		trackURL := entry.URL
		if trackURL == "" {
			trackURL = url
		}
		return &InfoResult{
			Type: "track",
			Track: TrackInfo{
				Title:    orUnknown(entry.Title),
				URL:      trackURL,
				Duration: entry.Duration,
				Uploader: entry.Uploader,
			},
		}, nil
	}

	tracks := make([]TrackInfo, 0, len(entries))
	for _, entry := range entries {
		tracks = append(tracks, TrackInfo{
			Title:    orUnknown(entry.Title),
			URL:      entry.URL,
			Duration: entry.Duration,
			Uploader: entry.Uploader,
		})
	}
	return &InfoResult{Type: "playlist", Playlist: tracks}, nil
}

func orUnknown(title string) string {
	if title == "" {
		return "Unknown Track"
	}
	return title
}

// DownloadAudio downloads a single track as mp3 and returns the local serving
// URL. This is the stage pre-fetcher's downloader interface.
func (s *Service) DownloadAudio(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	s.logger.Info("downloading track", slog.String("url", url))

	ctx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	defer cancel()

	fileID := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	outputTemplate := filepath.Join(s.dir, fileID+".%(ext)s")

	_, stderr, err := s.run(ctx, s.ytdlp,
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"-o", outputTemplate,
		"--no-playlist",
		"--no-warnings",
		url,
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("download timed out: %w", ctx.Err())
		}
		s.logger.Error("yt-dlp download failed", slog.String("stderr", string(stderr)))
		return "", errors.New("download failed, check the URL")
	}

	// yt-dlp may name the file slightly differently, probe for it.
	for _, ext := range audioExtensions {
		candidate := filepath.Join(s.dir, fileID+ext)
		if _, statErr := os.Stat(candidate); statErr == nil {
			s.logger.Info("download complete", slog.String("file", candidate))
			return MountPath + filepath.Base(candidate), nil
		}
	}

	return "", errors.New("downloaded file not found")
}

// Path resolves a downloaded filename to its on-disk path.
func (s *Service) Path(filename string) (string, bool) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", false
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
