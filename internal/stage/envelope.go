package stage

import "encoding/json"

// inboundMessage is the union of every client->server message. Handlers read
// only the fields their type defines; unknown fields are ignored.
type inboundMessage struct {
	Type string `json:"type"`

	// set_username, create_room, rename_room
	Name string `json:"name"`

	// join_room
	RoomID string `json:"roomId"`

	// chat_message
	Text string `json:"text"`

	// update_now_playing
	NowPlaying json.RawMessage `json:"nowPlaying"`

	// set_audio_source carries source as an object; queue_add and
	// suggest_song carry it as a kind string. Decoded per handler.
	Source   json.RawMessage `json:"source"`
	AIParams json.RawMessage `json:"aiParams"`

	// sync_state
	CurrentTime   float64 `json:"currentTime"`
	IsPlaying     bool    `json:"isPlaying"`
	PlaybackSpeed float64 `json:"playbackSpeed"`

	// host_action
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`

	// queue_add, suggest_song
	Title     string `json:"title"`
	URL       string `json:"url"`
	RemoteURL string `json:"remoteUrl"`

	// queue_remove, queue_update_item
	ItemID string `json:"itemId"`
	Status string `json:"status"`

	// queue_reorder
	ItemIDs []string `json:"itemIds"`

	// respond_suggestion
	SuggestionID string `json:"suggestionId"`
	Approve      bool   `json:"approve"`
}

func (m *inboundMessage) sourceKind() string {
	var kind string
	if err := json.Unmarshal(m.Source, &kind); err != nil {
		return ""
	}
	return kind
}

func (m *inboundMessage) audioSource() *AudioSource {
	var src AudioSource
	if err := json.Unmarshal(m.Source, &src); err != nil {
		return nil
	}
	return &src
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type connectedMsg struct {
	Type        string        `json:"type"`
	UserID      string        `json:"userId"`
	PublicRooms []RoomSummary `json:"publicRooms"`
}

type usernameSetMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type userRenamedMsg struct {
	Type    string       `json:"type"`
	UserID  string       `json:"userId"`
	OldName string       `json:"oldName"`
	NewName string       `json:"newName"`
	Members []MemberInfo `json:"members"`
}

type roomCreatedMsg struct {
	Type     string        `json:"type"`
	Room     RoomSummary   `json:"room"`
	Members  []MemberInfo  `json:"members"`
	Messages []ChatMessage `json:"messages"`
}

// roomSnapshotMsg is the full-state payload sent on room_joined and
// returned_to_room. It must carry everything a late joiner needs to converge.
type roomSnapshotMsg struct {
	Type             string                     `json:"type"`
	Room             RoomSummary                `json:"room"`
	Members          []MemberInfo               `json:"members"`
	Messages         []ChatMessage              `json:"messages"`
	AudioSource      *AudioSource               `json:"audioSource"`
	AIParams         json.RawMessage            `json:"aiParams,omitempty"`
	LastSync         *SyncSnapshot              `json:"lastSync"`
	VisualizerState  map[string]json.RawMessage `json:"visualizerState,omitempty"`
	Queue            []*QueueItem               `json:"queue"`
	Suggestions      []*Suggestion              `json:"suggestions"`
	HostedRoom       *RoomSummary               `json:"hostedRoom,omitempty"`
	NeedsAudioReload bool                       `json:"needsAudioReload,omitempty"`
}

type roomUpdatedMsg struct {
	Type string      `json:"type"`
	Room RoomSummary `json:"room"`
}

type roomClosedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type wentToMenuMsg struct {
	Type string      `json:"type"`
	Room RoomSummary `json:"room"`
}

type hostedRoomUpdatedMsg struct {
	Type string      `json:"type"`
	Room RoomSummary `json:"room"`
}

type hostedRoomEndedMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

type leftRoomMsg struct {
	Type string `json:"type"`
}

type memberChangeMsg struct {
	Type          string       `json:"type"`
	UserID        string       `json:"userId"`
	Username      string       `json:"username"`
	Members       []MemberInfo `json:"members"`
	SystemMessage ChatMessage  `json:"systemMessage"`
}

type chatBroadcastMsg struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type publicRoomsMsg struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

type audioSourceMsg struct {
	Type     string          `json:"type"`
	Source   *AudioSource    `json:"source"`
	AIParams json.RawMessage `json:"aiParams,omitempty"`
}

type syncStateMsg struct {
	Type          string  `json:"type"`
	CurrentTime   float64 `json:"currentTime"`
	IsPlaying     bool    `json:"isPlaying"`
	PlaybackSpeed float64 `json:"playbackSpeed"`
	Timestamp     float64 `json:"timestamp"`
}

type hostActionMsg struct {
	Type    string          `json:"type"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type queueUpdateMsg struct {
	Type        string        `json:"type"`
	Queue       []*QueueItem  `json:"queue"`
	Suggestions []*Suggestion `json:"suggestions"`
}

type queuePlayNextMsg struct {
	Type string     `json:"type"`
	Item *QueueItem `json:"item"`
}

type newSuggestionMsg struct {
	Type       string      `json:"type"`
	Suggestion *Suggestion `json:"suggestion"`
}

type suggestionSentMsg struct {
	Type       string      `json:"type"`
	Suggestion *Suggestion `json:"suggestion"`
}

type suggestionResponseMsg struct {
	Type         string     `json:"type"`
	SuggestionID string     `json:"suggestionId"`
	Approved     bool       `json:"approved"`
	Item         *QueueItem `json:"item,omitempty"`
}
