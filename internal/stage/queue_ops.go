package stage

import (
	"strings"

	"github.com/audiolyze/stage/internal/ident"
)

func validSourceKind(kind string) bool {
	return kind == SourceUpload || kind == SourceRemote
}

func validItemStatus(status string) bool {
	switch status {
	case ItemPending, ItemAnalyzing, ItemReady, ItemPlaying, ItemPlayed:
		return true
	}
	return false
}

// afterQueueMutation broadcasts the fresh queue state to the hosted room and
// kicks the pre-fetcher over the new priority region.
func (s *Server) afterQueueMutation(r *Room) {
	s.broadcastRoom(r, queueUpdateMsg{
		Type:        "queue_update",
		Queue:       r.Queue,
		Suggestions: r.pendingSuggestions(),
	}, "")
	s.schedulePrefetch(r)
}

func (s *Server) newQueueItem(addedBy *User, title, kind, url, remoteURL string) *QueueItem {
	item := &QueueItem{
		ID:             ident.New(),
		Title:          title,
		Source:         kind,
		URL:            url,
		AddedBy:        addedBy.ID,
		AddedByName:    addedBy.Name,
		Status:         ItemPending,
		DownloadStatus: DownloadReady,
	}
	if kind == SourceRemote {
		if remoteURL == "" {
			remoteURL = url
		}
		item.RemoteURL = remoteURL
		item.DownloadStatus = DownloadPending
	}
	return item
}

func (s *Server) queueAdd(u *User, msg *inboundMessage) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	title := clampString(strings.TrimSpace(msg.Title), maxTitleLen)
	kind := msg.sourceKind()
	if title == "" || !validSourceKind(kind) {
		return
	}

	item := s.newQueueItem(u, title, kind, msg.URL, msg.RemoteURL)
	if kind == SourceUpload && s.uploads != nil {
		if filename, ok := s.uploads.FilenameFromURL(msg.URL); ok {
			r.OwnedUploads[filename] = struct{}{}
		}
	}
	r.Queue = append(r.Queue, item)
	s.afterQueueMutation(r)
}

func (s *Server) queueRemove(u *User, itemID string) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	queue, changed := removeQueueItem(r.Queue, itemID)
	if !changed {
		return
	}
	r.Queue = queue
	s.afterQueueMutation(r)
}

func (s *Server) queueReorder(u *User, itemIDs []string) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	r.Queue = reorderQueue(r.Queue, itemIDs)
	s.afterQueueMutation(r)
}

func (s *Server) queueUpdateItem(u *User, msg *inboundMessage) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	item := findItem(r.Queue, msg.ItemID)
	if item == nil {
		return
	}
	if msg.Status != "" && validItemStatus(msg.Status) {
		item.Status = msg.Status
	}
	if msg.AIParams != nil {
		item.AIParams = msg.AIParams
	}
	s.afterQueueMutation(r)
}

func (s *Server) queueAdvance(u *User) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	if promoted := advanceQueue(r.Queue); promoted != nil {
		s.broadcastRoom(r, queuePlayNextMsg{Type: "queue_play_next", Item: promoted}, "")
	}
	s.afterQueueMutation(r)
}

func (s *Server) suggestSong(u *User, msg *inboundMessage) {
	r := s.registry.room(u.InRoomID)
	if r == nil || u.ID == r.HostID {
		return
	}
	if r.hasPendingSuggestionFrom(u.ID) {
		s.sendError(u, "You already have a pending suggestion")
		return
	}
	title := clampString(strings.TrimSpace(msg.Title), maxTitleLen)
	kind := msg.sourceKind()
	if title == "" || !validSourceKind(kind) {
		return
	}

	sug := &Suggestion{
		ID:        ident.New(),
		Title:     title,
		Source:    kind,
		URL:       msg.URL,
		UserID:    u.ID,
		Username:  u.Name,
		Status:    SuggestionPending,
		Timestamp: s.nowSeconds(),
	}
	r.Suggestions = append(r.Suggestions, sug)

	// The host may be visiting another room; route by identity, not
	// membership.
	if host := s.registry.user(r.HostID); host != nil {
		s.sendTo(host, newSuggestionMsg{Type: "new_suggestion", Suggestion: sug})
	}
	s.sendTo(u, suggestionSentMsg{Type: "suggestion_sent", Suggestion: sug})
}

func (s *Server) respondSuggestion(u *User, msg *inboundMessage) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	sug := r.findSuggestion(msg.SuggestionID)
	if sug == nil || sug.Status != SuggestionPending {
		return
	}

	var item *QueueItem
	if msg.Approve {
		sug.Status = SuggestionApproved
		suggester := s.registry.user(sug.UserID)
		addedBy := &User{ID: sug.UserID, Name: sug.Username}
		if suggester != nil {
			addedBy = suggester
		}
		item = s.newQueueItem(addedBy, sug.Title, sug.Source, sug.URL, "")
		r.Queue = append(r.Queue, item)
	} else {
		sug.Status = SuggestionRejected
	}

	if suggester := s.registry.user(sug.UserID); suggester != nil {
		s.sendTo(suggester, suggestionResponseMsg{
			Type:         "suggestion_response",
			SuggestionID: sug.ID,
			Approved:     msg.Approve,
			Item:         item,
		})
	}
	s.afterQueueMutation(r)
}
