package stage

import (
	"encoding/json"
	"log/slog"
)

// Fan-out: every envelope is marshaled once, then handed to each recipient's
// non-blocking send queue. A recipient whose queue is full loses the message
// rather than stalling the room; its connection will fall behind and get
// reaped by the transport's own liveness checks.

func (s *Server) sendTo(u *User, env any) {
	if u == nil || u.conn == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("marshaling envelope", slog.String("error", err.Error()))
		return
	}
	if !u.conn.Enqueue(data) {
		s.metrics.DroppedSends.Inc()
	}
}

func (s *Server) sendError(u *User, message string) {
	s.sendTo(u, errorMsg{Type: "error", Message: message})
}

// broadcastRoom sends env to every member of r except excludeID.
func (s *Server) broadcastRoom(r *Room, env any, excludeID string) {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("marshaling envelope", slog.String("error", err.Error()))
		return
	}
	s.metrics.Broadcasts.Inc()
	for _, m := range r.Members {
		if m.ID == excludeID || m.conn == nil {
			continue
		}
		if !m.conn.Enqueue(data) {
			s.metrics.DroppedSends.Inc()
		}
	}
}

// broadcastAudience sends env to every member of r except its host.
func (s *Server) broadcastAudience(r *Room, env any) {
	s.broadcastRoom(r, env, r.HostID)
}

// broadcastPublicRooms pushes the refreshed public listing to every connected
// user, in or out of rooms.
func (s *Server) broadcastPublicRooms() {
	env := publicRoomsMsg{Type: "public_rooms", Rooms: s.registry.publicSummaries()}
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("marshaling envelope", slog.String("error", err.Error()))
		return
	}
	s.metrics.Broadcasts.Inc()
	for _, u := range s.registry.users {
		if u.conn == nil {
			continue
		}
		if !u.conn.Enqueue(data) {
			s.metrics.DroppedSends.Inc()
		}
	}
}

// notifyVisitingHost tells r's absent host that membership changed while they
// were away.
func (s *Server) notifyVisitingHost(r *Room) {
	if !r.HostVisiting {
		return
	}
	if host := s.registry.user(r.HostID); host != nil {
		s.sendTo(host, hostedRoomUpdatedMsg{Type: "hosted_room_updated", Room: r.summary()})
	}
}
