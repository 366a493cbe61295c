package stage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	mu      sync.Mutex
	calls   []string
	block   chan struct{}
	fileURL string
	err     error
}

func (f *fakeDownloader) DownloadAudio(ctx context.Context, remoteURL string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, remoteURL)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.fileURL, f.err
}

func (f *fakeDownloader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (s *Server) itemSnapshot(roomID, itemID string) (status, downloadStatus, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.registry.room(roomID)
	if r == nil {
		return "", "", ""
	}
	it := findItem(r.Queue, itemID)
	if it == nil {
		return "", "", ""
	}
	return it.Status, it.DownloadStatus, it.URL
}

func TestPrefetchLocalizesPriorityItems(t *testing.T) {
	dl := &fakeDownloader{fileURL: "/soundcloud/file/local.mp3"}
	s := newTestServer(t, Options{Downloader: dl})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")

	sendMsg(t, s, host, map[string]any{
		"type": "queue_add", "title": "One", "source": "remote", "url": "https://sc/1",
	})
	itemID := func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.registry.room(roomID).Queue[0].ID
	}()

	require.Eventually(t, func() bool {
		_, dlStatus, url := s.itemSnapshot(roomID, itemID)
		return dlStatus == DownloadReady && url == "/soundcloud/file/local.mp3"
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, m := range hostConn.byType(t, "queue_update") {
			items := m["queue"].([]any)
			if len(items) == 1 && items[0].(map[string]any)["downloadStatus"] == "ready" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestPrefetchFailureMarksItem(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("unsupported url")}
	s := newTestServer(t, Options{Downloader: dl})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")

	sendMsg(t, s, host, map[string]any{
		"type": "queue_add", "title": "Bad", "source": "remote", "url": "https://sc/bad",
	})
	itemID := func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.registry.room(roomID).Queue[0].ID
	}()

	require.Eventually(t, func() bool {
		status, dlStatus, _ := s.itemSnapshot(roomID, itemID)
		return status == ItemPending && dlStatus == DownloadFailed
	}, time.Second, 10*time.Millisecond)

	// Failed items are not retried on later mutations.
	sendMsg(t, s, host, map[string]any{
		"type": "queue_add", "title": "Two", "source": "upload", "url": "/rooms/uploads/x.mp3",
	})
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, dl.callCount())
}

func TestPrefetchOnlyCoversPriorityRegion(t *testing.T) {
	dl := &fakeDownloader{fileURL: "/soundcloud/file/local.mp3"}
	s := newTestServer(t, Options{Downloader: dl})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")

	for _, url := range []string{"https://sc/1", "https://sc/2", "https://sc/3", "https://sc/4"} {
		sendMsg(t, s, host, map[string]any{
			"type": "queue_add", "title": url, "source": "remote", "url": url,
		})
	}

	require.Eventually(t, func() bool { return dl.callCount() == 3 }, time.Second, 10*time.Millisecond)

	s.mu.Lock()
	fourth := s.registry.room(roomID).Queue[3]
	s.mu.Unlock()
	require.Equal(t, DownloadPending, fourth.DownloadStatus)

	dl.mu.Lock()
	require.NotContains(t, dl.calls, "https://sc/4")
	dl.mu.Unlock()
}

func TestPrefetchSkipsUploads(t *testing.T) {
	dl := &fakeDownloader{fileURL: "/soundcloud/file/local.mp3"}
	s := newTestServer(t, Options{Downloader: dl})
	host, hostConn := connect(t, s, "Ada")
	hostRoom(t, s, host, hostConn, "Set")

	sendMsg(t, s, host, map[string]any{
		"type": "queue_add", "title": "Up", "source": "upload", "url": "/rooms/uploads/x.mp3",
	})

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, dl.callCount())
}

func TestOrphanedPrefetchIsDiscarded(t *testing.T) {
	dl := &fakeDownloader{fileURL: "/soundcloud/file/local.mp3", block: make(chan struct{})}
	s := newTestServer(t, Options{Downloader: dl})
	host, hostConn := connect(t, s, "Ada")
	hostRoom(t, s, host, hostConn, "Set")

	sendMsg(t, s, host, map[string]any{
		"type": "queue_add", "title": "One", "source": "remote", "url": "https://sc/1",
	})
	require.Eventually(t, func() bool { return dl.callCount() == 1 }, time.Second, 10*time.Millisecond)

	sendMsg(t, s, host, map[string]any{"type": "end_room"})
	hostConn.reset()
	close(dl.block)

	// The late completion finds no room and is dropped without a broadcast.
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, hostConn.byType(t, "queue_update"))
}
