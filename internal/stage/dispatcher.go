package stage

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/audiolyze/stage/internal/ident"
)

var inboundTypes = map[string]bool{
	"set_username": true, "create_room": true, "join_room": true,
	"leave_room": true, "end_room": true, "go_to_menu": true,
	"return_to_room": true, "get_public_rooms": true, "chat_message": true,
	"toggle_public": true, "rename_room": true, "update_now_playing": true,
	"set_audio_source": true, "sync_state": true, "host_action": true,
	"queue_add": true, "queue_remove": true, "queue_reorder": true,
	"queue_update_item": true, "queue_advance": true, "suggest_song": true,
	"respond_suggestion": true,
}

// HandleMessage processes one inbound frame from u's connection. Messages
// from a single connection are handled in arrival order by the read loop that
// calls this; the state lock serializes across connections.
//
// Authorization failures on host-only messages are dropped without a reply,
// as are malformed or unknown frames. Errors the sender can act on (room not
// found, room private, duplicate suggestion) get an error envelope.
func (s *Server) HandleMessage(u *User, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		return
	}

	// Unknown tags share one label so clients cannot inflate metric
	// cardinality.
	if inboundTypes[msg.Type] {
		s.metrics.InboundMessages.WithLabelValues(msg.Type).Inc()
	} else {
		s.metrics.InboundMessages.WithLabelValues("unknown").Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.user(u.ID) == nil {
		return
	}

	switch msg.Type {
	case "set_username":
		s.setUsername(u, msg.Name)
	case "create_room":
		s.createRoom(u, strings.TrimSpace(msg.Name))
	case "join_room":
		s.joinRoom(u, msg.RoomID)
	case "leave_room":
		s.leaveRoom(u)
	case "end_room":
		s.endRoom(u)
	case "go_to_menu":
		s.goToMenu(u)
	case "return_to_room":
		s.returnToHosted(u)
	case "get_public_rooms":
		s.sendTo(u, publicRoomsMsg{Type: "public_rooms", Rooms: s.registry.publicSummaries()})
	case "chat_message":
		s.chatMessage(u, msg.Text)
	case "toggle_public":
		s.togglePublic(u)
	case "rename_room":
		s.renameRoom(u, strings.TrimSpace(msg.Name))
	case "update_now_playing":
		s.updateNowPlaying(u, msg.NowPlaying)
	case "set_audio_source":
		s.setAudioSource(u, &msg)
	case "sync_state":
		s.syncState(u, &msg)
	case "host_action":
		s.hostAction(u, &msg)
	case "queue_add":
		s.queueAdd(u, &msg)
	case "queue_remove":
		s.queueRemove(u, msg.ItemID)
	case "queue_reorder":
		s.queueReorder(u, msg.ItemIDs)
	case "queue_update_item":
		s.queueUpdateItem(u, &msg)
	case "queue_advance":
		s.queueAdvance(u)
	case "suggest_song":
		s.suggestSong(u, &msg)
	case "respond_suggestion":
		s.respondSuggestion(u, &msg)
	default:
		s.logger.Debug("unknown message type", slog.String("type", msg.Type))
	}
}

// hostedRoomOf resolves the room u hosts, or nil; host-only handlers drop
// silently on nil.
func (s *Server) hostedRoomOf(u *User) *Room {
	return s.registry.room(u.HostedRoomID)
}

func (s *Server) setUsername(u *User, name string) {
	name = clampString(strings.TrimSpace(name), maxUsernameLen)
	if name == "" {
		name = "Anon"
	}
	old := u.Name
	u.Name = name

	if hosted := s.hostedRoomOf(u); hosted != nil {
		hosted.HostName = name
	}
	if r := s.registry.room(u.InRoomID); r != nil && old != name {
		s.broadcastRoom(r, userRenamedMsg{
			Type:    "user_renamed",
			UserID:  u.ID,
			OldName: old,
			NewName: name,
			Members: r.memberList(),
		}, "")
	}
	s.sendTo(u, usernameSetMsg{Type: "username_set", Name: name})
}

func (s *Server) chatMessage(u *User, text string) {
	r := s.registry.room(u.InRoomID)
	if r == nil {
		return
	}
	text = clampString(strings.TrimSpace(text), maxChatTextLen)
	if text == "" {
		return
	}

	cm := ChatMessage{
		ID:        ident.New(),
		UserID:    u.ID,
		Username:  u.Name,
		Text:      text,
		Timestamp: s.nowSeconds(),
		IsHost:    u.ID == r.HostID,
	}
	r.appendMessage(cm)
	s.broadcastRoom(r, chatBroadcastMsg{Type: "chat_message", Message: cm}, "")
}

func (s *Server) togglePublic(u *User) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	r.IsPublic = !r.IsPublic
	s.broadcastRoom(r, roomUpdatedMsg{Type: "room_updated", Room: r.summary()}, "")
	s.notifyVisitingHost(r)
	s.broadcastPublicRooms()
}

func (s *Server) renameRoom(u *User, name string) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	name = clampString(name, maxRoomNameLen)
	if name == "" {
		return
	}
	r.Name = name
	s.broadcastRoom(r, roomUpdatedMsg{Type: "room_updated", Room: r.summary()}, "")
	s.notifyVisitingHost(r)
	if r.IsPublic {
		s.broadcastPublicRooms()
	}
}

func (s *Server) updateNowPlaying(u *User, nowPlaying json.RawMessage) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	r.NowPlaying = nowPlaying
	s.broadcastRoom(r, roomUpdatedMsg{Type: "room_updated", Room: r.summary()}, "")
	if r.IsPublic {
		s.broadcastPublicRooms()
	}
}

func (s *Server) setAudioSource(u *User, msg *inboundMessage) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	src := msg.audioSource()
	if src == nil || src.URL == "" {
		return
	}

	r.AudioSource = src
	r.AIParams = msg.AIParams
	r.LastSync = &SyncSnapshot{PlaybackSpeed: 1.0, Timestamp: s.nowSeconds()}
	r.VisualizerState = make(map[string]json.RawMessage)

	if src.Kind == SourceUpload && s.uploads != nil {
		if filename, ok := s.uploads.FilenameFromURL(src.URL); ok {
			r.OwnedUploads[filename] = struct{}{}
		}
	}

	s.broadcastAudience(r, audioSourceMsg{Type: "audio_source", Source: src, AIParams: msg.AIParams})
}

func (s *Server) syncState(u *User, msg *inboundMessage) {
	r := s.hostedRoomOf(u)
	if r == nil {
		return
	}
	snap := &SyncSnapshot{
		CurrentTime:   msg.CurrentTime,
		IsPlaying:     msg.IsPlaying,
		PlaybackSpeed: msg.PlaybackSpeed,
		Timestamp:     s.nowSeconds(),
	}
	if snap.PlaybackSpeed == 0 {
		snap.PlaybackSpeed = 1.0
	}
	r.LastSync = snap
	s.broadcastAudience(r, syncStateMsg{
		Type:          "sync_state",
		CurrentTime:   snap.CurrentTime,
		IsPlaying:     snap.IsPlaying,
		PlaybackSpeed: snap.PlaybackSpeed,
		Timestamp:     snap.Timestamp,
	})
}

func (s *Server) hostAction(u *User, msg *inboundMessage) {
	r := s.hostedRoomOf(u)
	if r == nil || msg.Action == "" {
		return
	}

	switch msg.Action {
	case "play_pause":
		var p struct {
			IsPlaying   bool     `json:"isPlaying"`
			CurrentTime *float64 `json:"currentTime"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			snap := s.ensureLastSync(r)
			snap.IsPlaying = p.IsPlaying
			if p.CurrentTime != nil {
				snap.CurrentTime = *p.CurrentTime
			}
			snap.Timestamp = s.nowSeconds()
		}
	case "seek":
		var p struct {
			CurrentTime float64 `json:"currentTime"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			snap := s.ensureLastSync(r)
			snap.CurrentTime = p.CurrentTime
			snap.Timestamp = s.nowSeconds()
		}
	case "speed_change":
		var p struct {
			PlaybackSpeed float64 `json:"playbackSpeed"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err == nil && p.PlaybackSpeed > 0 {
			snap := s.ensureLastSync(r)
			snap.PlaybackSpeed = p.PlaybackSpeed
			snap.Timestamp = s.nowSeconds()
		}
	case "shape_change":
		r.VisualizerState["shape"] = msg.Payload
	case "environment_change":
		r.VisualizerState["environment"] = msg.Payload
	case "eq_change":
		r.VisualizerState["eq"] = msg.Payload
	case "anaglyph_toggle":
		r.VisualizerState["anaglyph"] = msg.Payload
	}

	s.broadcastAudience(r, hostActionMsg{Type: "host_action", Action: msg.Action, Payload: msg.Payload})
}

func (s *Server) ensureLastSync(r *Room) *SyncSnapshot {
	if r.LastSync == nil {
		r.LastSync = &SyncSnapshot{PlaybackSpeed: 1.0}
	}
	return r.LastSync
}
