package stage

import (
	"encoding/json"
	"sort"
)

func newRoom(id, name string, host *User, createdAt float64) *Room {
	return &Room{
		ID:              id,
		Name:            name,
		HostID:          host.ID,
		HostName:        host.Name,
		VisualizerState: make(map[string]json.RawMessage),
		Members:         map[string]*User{host.ID: host},
		Messages:        []ChatMessage{},
		Queue:           []*QueueItem{},
		Suggestions:     []*Suggestion{},
		OwnedUploads:    make(map[string]struct{}),
		CreatedAt:       createdAt,
	}
}

// summary derives the public shape. The host never counts toward the
// audience, whether present or visiting.
func (r *Room) summary() RoomSummary {
	audience := len(r.Members)
	if !r.HostVisiting {
		audience--
	}
	if audience < 0 {
		audience = 0
	}
	return RoomSummary{
		ID:            r.ID,
		Name:          r.Name,
		HostID:        r.HostID,
		HostName:      r.HostName,
		IsPublic:      r.IsPublic,
		NowPlaying:    r.NowPlaying,
		AudienceCount: audience,
		HostVisiting:  r.HostVisiting,
		CreatedAt:     r.CreatedAt,
	}
}

// memberList returns members sorted host first, then by name, so repeated
// broadcasts render identically.
func (r *Room) memberList() []MemberInfo {
	out := make([]MemberInfo, 0, len(r.Members))
	for _, m := range r.Members {
		out = append(out, MemberInfo{ID: m.ID, Name: m.Name, IsHost: m.ID == r.HostID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsHost != out[j].IsHost {
			return out[i].IsHost
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// appendMessage adds to the chat log, truncating to the most recent half once
// the cap is reached.
func (r *Room) appendMessage(msg ChatMessage) {
	r.Messages = append(r.Messages, msg)
	if len(r.Messages) >= maxChatHistory {
		trimmed := make([]ChatMessage, trimmedChatHistory)
		copy(trimmed, r.Messages[len(r.Messages)-trimmedChatHistory:])
		r.Messages = trimmed
	}
}

// recentMessages returns the newest n entries, oldest first.
func (r *Room) recentMessages(n int) []ChatMessage {
	if len(r.Messages) <= n {
		return r.Messages
	}
	return r.Messages[len(r.Messages)-n:]
}

func (r *Room) pendingSuggestions() []*Suggestion {
	out := []*Suggestion{}
	for _, s := range r.Suggestions {
		if s.Status == SuggestionPending {
			out = append(out, s)
		}
	}
	return out
}

func (r *Room) hasPendingSuggestionFrom(userID string) bool {
	for _, s := range r.Suggestions {
		if s.UserID == userID && s.Status == SuggestionPending {
			return true
		}
	}
	return false
}

func (r *Room) findSuggestion(id string) *Suggestion {
	for _, s := range r.Suggestions {
		if s.ID == id {
			return s
		}
	}
	return nil
}
