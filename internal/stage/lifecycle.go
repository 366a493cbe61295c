package stage

import (
	"fmt"
	"log/slog"

	"github.com/audiolyze/stage/internal/ident"
)

// Room membership moves follow three distinct protocols. visitedLeave detaches
// a user from a room they do not host and never destroys it, so switching
// rooms or a host heading home cannot kill someone else's stage. memberLeave
// is the terminal variant used when the user abandons the room outright; it
// additionally destroys the room if the leaver was its last occupant.
// detachHost removes the host from their own room without destroying it,
// flipping it into visiting mode.

func (s *Server) systemMessage(text string) ChatMessage {
	return ChatMessage{
		ID:        ident.New(),
		UserID:    "system",
		Username:  "System",
		Text:      text,
		Timestamp: s.nowSeconds(),
		IsSystem:  true,
	}
}

func (s *Server) visitedLeave(u *User, r *Room) {
	delete(r.Members, u.ID)
	u.InRoomID = ""

	sys := s.systemMessage(u.Name + " left the stage")
	r.appendMessage(sys)
	s.broadcastRoom(r, memberChangeMsg{
		Type:          "user_left",
		UserID:        u.ID,
		Username:      u.Name,
		Members:       r.memberList(),
		SystemMessage: sys,
	}, "")
	s.notifyVisitingHost(r)
	if r.IsPublic {
		s.broadcastPublicRooms()
	}
}

func (s *Server) memberLeave(u *User, r *Room) {
	wasLast := len(r.Members) == 1
	s.visitedLeave(u, r)
	if wasLast && s.registry.room(r.ID) != nil {
		s.destroyRoom(r, "Stage closed", nil)
	}
}

func (s *Server) detachHost(u *User, hosted *Room) {
	hosted.HostVisiting = true
	delete(hosted.Members, u.ID)
	u.InRoomID = ""

	sys := s.systemMessage(u.Name + " left the stage")
	hosted.appendMessage(sys)
	s.broadcastRoom(hosted, memberChangeMsg{
		Type:          "user_left",
		UserID:        u.ID,
		Username:      u.Name,
		Members:       hosted.memberList(),
		SystemMessage: sys,
	}, "")
	if hosted.IsPublic {
		s.broadcastPublicRooms()
	}
}

// destroyRoom notifies remaining members, releases the room's uploaded blobs,
// and unregisters it. exclude (the initiating user, if any) gets no
// room_closed; the host, wherever they are, learns their room is gone.
func (s *Server) destroyRoom(r *Room, reason string, exclude *User) {
	for _, m := range r.Members {
		m.InRoomID = ""
		if exclude != nil && m.ID == exclude.ID {
			continue
		}
		s.sendTo(m, roomClosedMsg{Type: "room_closed", Reason: reason})
	}
	r.Members = make(map[string]*User)

	if s.uploads != nil {
		for filename := range r.OwnedUploads {
			s.uploads.Remove(filename)
		}
	}

	s.registry.removeRoom(r.ID)
	s.metrics.LiveRooms.Dec()

	if host := s.registry.user(r.HostID); host != nil {
		if host.HostedRoomID == r.ID {
			host.HostedRoomID = ""
		}
		s.sendTo(host, hostedRoomEndedMsg{Type: "hosted_room_ended", RoomID: r.ID, Reason: reason})
	}

	s.logger.Info("room destroyed",
		slog.String("room_id", r.ID),
		slog.String("reason", reason))

	if r.IsPublic {
		s.broadcastPublicRooms()
	}
}

// leaveCurrent detaches u from whatever room they occupy, choosing the right
// protocol, so a new room can be entered. No-op when u is roomless.
func (s *Server) leaveCurrent(u *User) {
	if u.InRoomID == "" {
		return
	}
	r := s.registry.room(u.InRoomID)
	if r == nil {
		u.InRoomID = ""
		return
	}
	if r.ID == u.HostedRoomID {
		s.detachHost(u, r)
	} else {
		s.visitedLeave(u, r)
	}
}

func (s *Server) createRoom(u *User, name string) {
	if prior := s.registry.room(u.HostedRoomID); prior != nil {
		s.destroyRoom(prior, "Host started a new stage", u)
	}
	u.HostedRoomID = ""
	s.leaveCurrent(u)

	name = clampString(name, maxRoomNameLen)
	if name == "" {
		name = fmt.Sprintf("%s's Stage", u.Name)
	}

	r := newRoom(ident.New(), name, u, s.nowSeconds())
	s.registry.addRoom(r)
	u.InRoomID = r.ID
	u.HostedRoomID = r.ID
	s.metrics.LiveRooms.Inc()

	// Rooms start private; the listing is untouched until toggle_public.
	s.sendTo(u, roomCreatedMsg{
		Type:     "room_created",
		Room:     r.summary(),
		Members:  r.memberList(),
		Messages: r.Messages,
	})

	s.logger.Info("room created",
		slog.String("room_id", r.ID),
		slog.String("host_id", u.ID))
}

func (s *Server) joinRoom(u *User, roomID string) {
	if roomID != "" && roomID == u.HostedRoomID {
		s.returnToHosted(u)
		return
	}

	target := s.registry.room(roomID)
	if target == nil {
		s.sendError(u, "Room not found")
		return
	}
	if !target.IsPublic {
		s.sendError(u, "Room is private")
		return
	}

	s.leaveCurrent(u)
	s.enterRoom(u, target, u.Name+" joined the stage", "room_joined", false)
}

// enterRoom makes u a member of r, announces the arrival, and ships the full
// state snapshot.
func (s *Server) enterRoom(u *User, r *Room, sysText, snapshotType string, needsReload bool) {
	r.Members[u.ID] = u
	u.InRoomID = r.ID

	sys := s.systemMessage(sysText)
	r.appendMessage(sys)

	s.sendTo(u, s.roomSnapshot(snapshotType, u, r, needsReload))
	s.broadcastRoom(r, memberChangeMsg{
		Type:          "user_joined",
		UserID:        u.ID,
		Username:      u.Name,
		Members:       r.memberList(),
		SystemMessage: sys,
	}, u.ID)
	s.notifyVisitingHost(r)
	if r.IsPublic {
		s.broadcastPublicRooms()
	}
}

func (s *Server) roomSnapshot(msgType string, u *User, r *Room, needsReload bool) roomSnapshotMsg {
	snap := roomSnapshotMsg{
		Type:             msgType,
		Room:             r.summary(),
		Members:          r.memberList(),
		Messages:         r.recentMessages(joinChatHistory),
		AudioSource:      r.AudioSource,
		AIParams:         r.AIParams,
		LastSync:         r.LastSync,
		VisualizerState:  r.VisualizerState,
		Queue:            r.Queue,
		Suggestions:      r.pendingSuggestions(),
		NeedsAudioReload: needsReload,
	}
	if u.HostedRoomID != "" && u.HostedRoomID != r.ID {
		if hosted := s.registry.room(u.HostedRoomID); hosted != nil {
			sum := hosted.summary()
			snap.HostedRoom = &sum
		}
	}
	return snap
}

func (s *Server) returnToHosted(u *User) {
	hosted := s.registry.room(u.HostedRoomID)
	if hosted == nil {
		u.HostedRoomID = ""
		s.sendError(u, "No hosted room")
		return
	}

	if u.InRoomID == hosted.ID && !hosted.HostVisiting {
		// Already home; just refresh the snapshot.
		s.sendTo(u, s.roomSnapshot("returned_to_room", u, hosted, false))
		return
	}

	s.leaveCurrent(u)
	hosted.HostVisiting = false
	s.enterRoom(u, hosted, u.Name+" returned to the stage", "returned_to_room", true)
}

func (s *Server) goToMenu(u *User) {
	hosted := s.registry.room(u.HostedRoomID)
	if hosted == nil {
		u.HostedRoomID = ""
		s.sendError(u, "No hosted room")
		return
	}
	s.leaveCurrent(u)
	s.sendTo(u, wentToMenuMsg{Type: "went_to_menu", Room: hosted.summary()})
}

func (s *Server) leaveRoom(u *User) {
	if u.InRoomID == "" {
		return
	}
	r := s.registry.room(u.InRoomID)
	if r == nil {
		u.InRoomID = ""
		return
	}

	switch {
	case r.ID == u.HostedRoomID:
		s.destroyRoom(r, "Host left the stage", u)
		s.sendTo(u, leftRoomMsg{Type: "left_room"})
	case u.HostedRoomID != "":
		// A visiting host leaving a room heads back to their own stage.
		s.visitedLeave(u, r)
		s.returnToHosted(u)
	default:
		s.memberLeave(u, r)
		s.sendTo(u, leftRoomMsg{Type: "left_room"})
	}
}

func (s *Server) endRoom(u *User) {
	hosted := s.registry.room(u.HostedRoomID)
	if hosted == nil {
		return
	}
	s.destroyRoom(hosted, "Host ended the stage", u)
}
