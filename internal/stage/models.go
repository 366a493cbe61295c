// Package stage implements the real-time room coordination core: one
// persistent bidirectional channel per participant, rooms owned by a host who
// drives synchronized playback and visualizer state for an audience, a shared
// song queue with a pre-fetched priority region, chat, and suggestions.
package stage

import (
	"encoding/json"
)

// Server-enforced string bounds.
const (
	maxUsernameLen = 30
	maxRoomNameLen = 50
	maxChatTextLen = 500
	maxTitleLen    = 200
)

// Chat history bounds: on reaching maxChatHistory the log is truncated to the
// most recent trimmedChatHistory entries. Joiners receive joinChatHistory.
const (
	maxChatHistory     = 200
	trimmedChatHistory = 100
	joinChatHistory    = 50
)

// priorityRegionSize is the number of leading non-played queue items that are
// shielded from reordering and eligible for pre-download.
const priorityRegionSize = 3

// Audio source kinds.
const (
	SourceUpload = "upload"
	SourceRemote = "remote"
)

// Queue item statuses.
const (
	ItemPending   = "pending"
	ItemAnalyzing = "analyzing"
	ItemReady     = "ready"
	ItemPlaying   = "playing"
	ItemPlayed    = "played"
)

// Queue item download statuses.
const (
	DownloadPending     = "pending"
	DownloadDownloading = "downloading"
	DownloadReady       = "ready"
	DownloadFailed      = "failed"
)

// Suggestion statuses.
const (
	SuggestionPending  = "pending"
	SuggestionApproved = "approved"
	SuggestionRejected = "rejected"
)

// transport is the outbound half of one participant connection. Enqueue must
// never block; it reports false when the message could not be buffered.
type transport interface {
	Enqueue(data []byte) bool
	Close()
}

// User is the per-connection state. It lives exactly as long as the
// connection it belongs to.
type User struct {
	ID   string
	Name string

	// InRoomID is the room the user currently occupies. HostedRoomID is the
	// room the user owns. They differ while the host is visiting elsewhere.
	InRoomID     string
	HostedRoomID string

	conn transport
}

// ChatMessage is one chat or system entry in a room's history.
type ChatMessage struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	Username  string  `json:"username"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
	IsHost    bool    `json:"isHost"`
	IsSystem  bool    `json:"isSystem"`
}

// AudioSource is the concrete media audience members fetch.
type AudioSource struct {
	Kind  string `json:"kind"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SyncSnapshot is the playback heartbeat payload. Audience clients
// extrapolate position as currentTime + (now - timestamp) * playbackSpeed
// while isPlaying.
type SyncSnapshot struct {
	CurrentTime   float64 `json:"currentTime"`
	IsPlaying     bool    `json:"isPlaying"`
	PlaybackSpeed float64 `json:"playbackSpeed"`
	Timestamp     float64 `json:"timestamp"`
}

// QueueItem is one entry of a room's song queue.
type QueueItem struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Source         string          `json:"source"`
	URL            string          `json:"url"`
	AddedBy        string          `json:"addedBy"`
	AddedByName    string          `json:"addedByName"`
	Status         string          `json:"status"`
	AIParams       json.RawMessage `json:"aiParams,omitempty"`
	RemoteURL      string          `json:"remoteUrl,omitempty"`
	DownloadStatus string          `json:"downloadStatus"`
}

// Suggestion is an audience member's song proposal, pending until the host
// approves or rejects it.
type Suggestion struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	URL       string  `json:"url"`
	UserID    string  `json:"userId"`
	Username  string  `json:"username"`
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// MemberInfo is the public shape of a room member.
type MemberInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// RoomSummary is the public-facing shape of a room, used in listings and
// room_updated broadcasts.
type RoomSummary struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	HostID        string          `json:"hostId"`
	HostName      string          `json:"hostName"`
	IsPublic      bool            `json:"isPublic"`
	NowPlaying    json.RawMessage `json:"nowPlaying,omitempty"`
	AudienceCount int             `json:"audienceCount"`
	HostVisiting  bool            `json:"hostVisiting"`
	CreatedAt     float64         `json:"createdAt"`
}

// Room holds all state of one live stage. All fields are guarded by the
// server's state lock; rooms never outlive their host's connection except
// transiently during host visits.
type Room struct {
	ID       string
	Name     string
	HostID   string
	HostName string
	IsPublic bool

	// NowPlaying and AIParams are opaque to the server; they are stored and
	// replayed verbatim.
	NowPlaying  json.RawMessage
	AudioSource *AudioSource
	AIParams    json.RawMessage
	LastSync    *SyncSnapshot

	// VisualizerState accumulates discrete host choices (shape, environment,
	// EQ, anaglyph) keyed by aspect, replayed to late joiners.
	VisualizerState map[string]json.RawMessage

	// HostVisiting is true while the host is a member of another room and
	// has been removed from this room's member list.
	HostVisiting bool

	Members     map[string]*User
	Messages    []ChatMessage
	Queue       []*QueueItem
	Suggestions []*Suggestion

	// OwnedUploads are upload-store filenames this room references; they are
	// deleted from blob storage when the room is destroyed.
	OwnedUploads map[string]struct{}

	CreatedAt float64
}

func clampString(s string, max int) string {
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}
