package stage

import (
	"context"
	"log/slog"
)

// Pre-fetch: remote tracks entering the priority region are downloaded in the
// background so playback can start from local storage. Work happens off the
// state lock; only the claim (pending -> downloading) and the completion are
// applied under it. A completion whose room or item has since disappeared is
// discarded.

func (s *Server) schedulePrefetch(r *Room) {
	if s.downloader == nil {
		return
	}
	for _, item := range priorityItems(r.Queue) {
		if item.Source != SourceRemote || item.RemoteURL == "" {
			continue
		}
		if item.DownloadStatus != DownloadPending {
			continue
		}
		item.DownloadStatus = DownloadDownloading
		go s.prefetch(r.ID, item.ID, item.RemoteURL)
	}
}

func (s *Server) prefetch(roomID, itemID, remoteURL string) {
	if err := s.dlSem.Acquire(context.Background(), 1); err != nil {
		s.completePrefetch(roomID, itemID, "", err)
		return
	}
	defer s.dlSem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), s.dlTimeout)
	defer cancel()

	localURL, err := s.downloader.DownloadAudio(ctx, remoteURL)
	s.completePrefetch(roomID, itemID, localURL, err)
}

func (s *Server) completePrefetch(roomID, itemID, localURL string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.registry.room(roomID)
	if r == nil {
		return
	}
	item := findItem(r.Queue, itemID)
	if item == nil {
		return
	}

	if err != nil {
		item.DownloadStatus = DownloadFailed
		s.metrics.Predownloads.WithLabelValues("failure").Inc()
		s.logger.Warn("pre-download failed",
			slog.String("room_id", roomID),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()))
	} else {
		item.URL = localURL
		item.DownloadStatus = DownloadReady
		s.metrics.Predownloads.WithLabelValues("success").Inc()
	}

	s.broadcastRoom(r, queueUpdateMsg{
		Type:        "queue_update",
		Queue:       r.Queue,
		Suggestions: r.pendingSuggestions(),
	}, "")
}
