package stage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectGreeting(t *testing.T) {
	s := newTestServer(t, Options{})
	conn := &fakeConn{}

	u := s.Connect(conn)
	require.NotEmpty(t, u.ID)
	require.Len(t, u.ID, 12)

	greeting := conn.last(t, "connected")
	require.Equal(t, u.ID, greeting["userId"])
	require.Empty(t, greeting["publicRooms"])
}

func TestCreateRoomGreetsHost(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")

	sendMsg(t, s, host, map[string]any{"type": "create_room", "name": "Ada's Set"})

	created := hostConn.last(t, "room_created")
	room := created["room"].(map[string]any)
	require.Equal(t, "Ada's Set", room["name"])
	require.Equal(t, host.ID, room["hostId"])
	require.Equal(t, "Ada", room["hostName"])
	require.Equal(t, false, room["isPublic"])
	require.Equal(t, float64(0), room["audienceCount"])

	members := created["members"].([]any)
	require.Len(t, members, 1)
	require.Equal(t, true, members[0].(map[string]any)["isHost"])
}

func TestCreateRoomDefaultName(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")

	sendMsg(t, s, host, map[string]any{"type": "create_room"})

	room := hostConn.last(t, "room_created")["room"].(map[string]any)
	require.Equal(t, "Ada's Stage", room["name"])
}

func TestJoinRoomAndChat(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")

	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})

	joined := guestConn.last(t, "room_joined")
	require.Len(t, joined["members"].([]any), 2)
	require.Equal(t, float64(1), joined["room"].(map[string]any)["audienceCount"])

	arrival := hostConn.last(t, "user_joined")
	require.Equal(t, guest.ID, arrival["userId"])
	require.Equal(t, "Bob joined the stage", arrival["systemMessage"].(map[string]any)["text"])

	sendMsg(t, s, guest, map[string]any{"type": "chat_message", "text": "  hello  "})

	for _, conn := range []*fakeConn{hostConn, guestConn} {
		chat := conn.last(t, "chat_message")["message"].(map[string]any)
		require.Equal(t, "hello", chat["text"])
		require.Equal(t, "Bob", chat["username"])
		require.Equal(t, false, chat["isHost"])
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	s := newTestServer(t, Options{})
	guest, guestConn := connect(t, s, "Bob")

	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": "missing"})

	require.Equal(t, "Room not found", guestConn.last(t, "error")["message"])
}

func TestJoinPrivateRoom(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	sendMsg(t, s, host, map[string]any{"type": "create_room", "name": "Set"})
	roomID := hostConn.last(t, "room_created")["room"].(map[string]any)["id"].(string)

	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})
	require.Equal(t, "Room is private", guestConn.last(t, "error")["message"])

	sendMsg(t, s, host, map[string]any{"type": "toggle_public"})
	require.Equal(t, true, hostConn.last(t, "room_updated")["room"].(map[string]any)["isPublic"])
	require.Len(t, guestConn.last(t, "public_rooms")["rooms"].([]any), 1)

	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})
	require.NotEmpty(t, guestConn.byType(t, "room_joined"))
}

func TestTogglePublicIsIdempotentPerMessage(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	hostRoom(t, s, host, hostConn, "Set")

	sendMsg(t, s, host, map[string]any{"type": "toggle_public"})
	sendMsg(t, s, host, map[string]any{"type": "toggle_public"})

	require.Equal(t, true, hostConn.last(t, "room_updated")["room"].(map[string]any)["isPublic"])
	require.Len(t, hostConn.last(t, "public_rooms")["rooms"].([]any), 1)
}

func TestHostOnlyMessagesFromGuestAreDropped(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})
	hostConn.reset()
	guestConn.reset()

	sendMsg(t, s, guest, map[string]any{"type": "toggle_public"})
	sendMsg(t, s, guest, map[string]any{"type": "rename_room", "name": "Hijacked"})
	sendMsg(t, s, guest, map[string]any{"type": "sync_state", "currentTime": 1.0, "isPlaying": true})
	sendMsg(t, s, guest, map[string]any{"type": "queue_add", "title": "T", "source": "remote", "url": "u"})

	require.Empty(t, hostConn.messages(t))
	require.Empty(t, guestConn.messages(t))
	require.Equal(t, "Set", s.registry.room(roomID).Name)
}

func TestSetUsernameBroadcastsRename(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})

	sendMsg(t, s, guest, map[string]any{"type": "set_username", "name": "Robert"})

	require.Equal(t, "Robert", guestConn.last(t, "username_set")["name"])
	renamed := hostConn.last(t, "user_renamed")
	require.Equal(t, "Bob", renamed["oldName"])
	require.Equal(t, "Robert", renamed["newName"])
	require.Len(t, renamed["members"].([]any), 2)
}

func TestSetUsernameDefaultsAndClamps(t *testing.T) {
	s := newTestServer(t, Options{})
	u, conn := connect(t, s, "")

	sendMsg(t, s, u, map[string]any{"type": "set_username", "name": "   "})
	require.Equal(t, "Anon", conn.last(t, "username_set")["name"])

	long := make([]byte, 80)
	for i := range long {
		long[i] = 'x'
	}
	sendMsg(t, s, u, map[string]any{"type": "set_username", "name": string(long)})
	require.Len(t, conn.last(t, "username_set")["name"].(string), maxUsernameLen)
}

func TestSyncStateReachesAudienceOnly(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})
	hostConn.reset()

	sendMsg(t, s, host, map[string]any{
		"type": "sync_state", "currentTime": 42.5, "isPlaying": true, "playbackSpeed": 1.25,
	})

	sync := guestConn.last(t, "sync_state")
	require.Equal(t, 42.5, sync["currentTime"])
	require.Equal(t, true, sync["isPlaying"])
	require.Equal(t, 1.25, sync["playbackSpeed"])
	require.Greater(t, sync["timestamp"].(float64), float64(0))
	require.Empty(t, hostConn.byType(t, "sync_state"))

	room := s.registry.room(roomID)
	require.NotNil(t, room.LastSync)
	require.Equal(t, 42.5, room.LastSync.CurrentTime)
}

func TestHostActionUpdatesVisualizerAndReplays(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})

	sendMsg(t, s, host, map[string]any{
		"type": "host_action", "action": "shape_change",
		"payload": map[string]any{"shape": "torus"},
	})
	sendMsg(t, s, host, map[string]any{
		"type": "host_action", "action": "seek",
		"payload": map[string]any{"currentTime": 90.0},
	})

	action := guestConn.byType(t, "host_action")[0]
	require.Equal(t, "shape_change", action["action"])
	require.Equal(t, "torus", action["payload"].(map[string]any)["shape"])

	room := s.registry.room(roomID)
	require.Contains(t, room.VisualizerState, "shape")
	require.Equal(t, 90.0, room.LastSync.CurrentTime)

	// A late joiner converges from the snapshot alone.
	late, lateConn := connect(t, s, "Cam")
	sendMsg(t, s, late, map[string]any{"type": "join_room", "roomId": roomID})
	snap := lateConn.last(t, "room_joined")
	require.Contains(t, snap["visualizerState"].(map[string]any), "shape")
	require.Equal(t, 90.0, snap["lastSync"].(map[string]any)["currentTime"])
}

func TestSetAudioSourceResetsPlaybackState(t *testing.T) {
	uploads := &fakeUploads{}
	s := newTestServer(t, Options{Uploads: uploads})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})
	hostConn.reset()

	sendMsg(t, s, host, map[string]any{
		"type": "host_action", "action": "shape_change", "payload": map[string]any{"shape": "cube"},
	})
	sendMsg(t, s, host, map[string]any{
		"type":     "set_audio_source",
		"source":   map[string]any{"kind": "upload", "url": "/rooms/uploads/abc.mp3", "title": "Track"},
		"aiParams": map[string]any{"palette": "neon"},
	})

	audio := guestConn.last(t, "audio_source")
	require.Equal(t, "Track", audio["source"].(map[string]any)["title"])
	require.Equal(t, "neon", audio["aiParams"].(map[string]any)["palette"])
	require.Empty(t, hostConn.byType(t, "audio_source"))

	room := s.registry.room(roomID)
	require.Empty(t, room.VisualizerState)
	require.Equal(t, false, room.LastSync.IsPlaying)
	require.Equal(t, 1.0, room.LastSync.PlaybackSpeed)
	require.Contains(t, room.OwnedUploads, "abc.mp3")
}

func TestLateJoinerCatchesUp(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Party")

	sendMsg(t, s, host, map[string]any{
		"type":   "set_audio_source",
		"source": map[string]any{"kind": "remote", "url": "https://ex/t", "title": "Track"},
	})
	sendMsg(t, s, host, map[string]any{
		"type": "sync_state", "currentTime": 42.0, "isPlaying": true, "playbackSpeed": 1.0,
	})

	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})

	snap := guestConn.last(t, "room_joined")
	require.Equal(t, "https://ex/t", snap["audioSource"].(map[string]any)["url"])
	lastSync := snap["lastSync"].(map[string]any)
	require.Equal(t, 42.0, lastSync["currentTime"])
	require.Equal(t, true, lastSync["isPlaying"])
}

func TestQueueAdvanceOrdering(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})

	sendMsg(t, s, host, map[string]any{"type": "queue_add", "title": "One", "source": "remote", "url": "https://sc/1"})
	sendMsg(t, s, host, map[string]any{"type": "queue_add", "title": "Two", "source": "remote", "url": "https://sc/2"})

	room := s.registry.room(roomID)
	require.Len(t, room.Queue, 2)
	first := room.Queue[0]
	require.Equal(t, ItemPending, first.Status)
	require.Equal(t, "https://sc/1", first.RemoteURL)

	first.Status = ItemPlaying
	room.Queue[1].Status = ItemReady
	guestConn.reset()

	sendMsg(t, s, host, map[string]any{"type": "queue_advance"})

	var sawPlayNext bool
	for _, m := range guestConn.messages(t) {
		switch m["type"] {
		case "queue_play_next":
			require.False(t, sawPlayNext)
			sawPlayNext = true
			require.Equal(t, "Two", m["item"].(map[string]any)["title"])
		case "queue_update":
			require.True(t, sawPlayNext, "queue_update must follow queue_play_next")
		}
	}
	require.True(t, sawPlayNext)
	require.Equal(t, ItemPlayed, room.Queue[0].Status)
	require.Equal(t, ItemPlaying, room.Queue[1].Status)
}

func TestQueueUpdateItemStatusAndParams(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	sendMsg(t, s, host, map[string]any{"type": "queue_add", "title": "One", "source": "remote", "url": "https://sc/1"})

	room := s.registry.room(roomID)
	itemID := room.Queue[0].ID

	sendMsg(t, s, host, map[string]any{
		"type": "queue_update_item", "itemId": itemID,
		"status": "ready", "aiParams": map[string]any{"palette": "ice"},
	})
	require.Equal(t, ItemReady, room.Queue[0].Status)
	require.NotNil(t, room.Queue[0].AIParams)

	sendMsg(t, s, host, map[string]any{"type": "queue_update_item", "itemId": itemID, "status": "bogus"})
	require.Equal(t, ItemReady, room.Queue[0].Status)
}

func TestSuggestionFlow(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})

	sendMsg(t, s, guest, map[string]any{
		"type": "suggest_song", "title": "Anthem", "source": "remote", "url": "https://sc/a",
	})

	sug := hostConn.last(t, "new_suggestion")["suggestion"].(map[string]any)
	require.Equal(t, "Anthem", sug["title"])
	require.Equal(t, "Bob", sug["username"])
	require.Equal(t, "pending", sug["status"])
	require.Equal(t, sug["id"], guestConn.last(t, "suggestion_sent")["suggestion"].(map[string]any)["id"])

	sendMsg(t, s, guest, map[string]any{
		"type": "suggest_song", "title": "Second", "source": "remote", "url": "https://sc/b",
	})
	require.Equal(t, "You already have a pending suggestion", guestConn.last(t, "error")["message"])

	sendMsg(t, s, host, map[string]any{
		"type": "respond_suggestion", "suggestionId": sug["id"], "approve": true,
	})

	resp := guestConn.last(t, "suggestion_response")
	require.Equal(t, true, resp["approved"])
	require.Equal(t, "Anthem", resp["item"].(map[string]any)["title"])

	room := s.registry.room(roomID)
	require.Len(t, room.Queue, 1)
	require.Equal(t, guest.ID, room.Queue[0].AddedBy)
	require.Empty(t, room.pendingSuggestions())

	// Resolved suggestions cannot be answered twice.
	room.Queue = nil
	sendMsg(t, s, host, map[string]any{
		"type": "respond_suggestion", "suggestionId": sug["id"], "approve": true,
	})
	require.Empty(t, room.Queue)
}

func TestSuggestionRejection(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})

	sendMsg(t, s, guest, map[string]any{
		"type": "suggest_song", "title": "Anthem", "source": "remote", "url": "https://sc/a",
	})
	sugID := hostConn.last(t, "new_suggestion")["suggestion"].(map[string]any)["id"]

	sendMsg(t, s, host, map[string]any{"type": "respond_suggestion", "suggestionId": sugID, "approve": false})

	resp := guestConn.last(t, "suggestion_response")
	require.Equal(t, false, resp["approved"])
	require.Nil(t, resp["item"])
	require.Empty(t, s.registry.room(roomID).Queue)

	// The slot frees up for a new suggestion.
	sendMsg(t, s, guest, map[string]any{
		"type": "suggest_song", "title": "Retry", "source": "remote", "url": "https://sc/b",
	})
	require.Equal(t, "Retry", guestConn.last(t, "suggestion_sent")["suggestion"].(map[string]any)["title"])
}

func TestHostDisconnectDestroysRoom(t *testing.T) {
	uploads := &fakeUploads{}
	s := newTestServer(t, Options{Uploads: uploads})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})
	sendMsg(t, s, host, map[string]any{
		"type":   "set_audio_source",
		"source": map[string]any{"kind": "upload", "url": "/rooms/uploads/track.mp3", "title": "T"},
	})

	s.Disconnect(host)

	require.Equal(t, "Host left the stage", guestConn.last(t, "room_closed")["reason"])
	require.Empty(t, guestConn.last(t, "public_rooms")["rooms"])
	require.Nil(t, s.registry.room(roomID))
	require.Equal(t, "", guest.InRoomID)
	require.Contains(t, uploads.removed, "track.mp3")
}

func TestGuestDisconnectAnnouncesLeave(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	guest, _ := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})

	s.Disconnect(guest)

	left := hostConn.last(t, "user_left")
	require.Equal(t, guest.ID, left["userId"])
	require.Len(t, left["members"].([]any), 1)
	require.NotNil(t, s.registry.room(roomID))
}

func TestChatHistoryTrimsAtCap(t *testing.T) {
	s := newTestServer(t, Options{})
	host, hostConn := connect(t, s, "Ada")
	roomID := hostRoom(t, s, host, hostConn, "Set")
	room := s.registry.room(roomID)

	for i := 0; i < maxChatHistory+10; i++ {
		sendMsg(t, s, host, map[string]any{"type": "chat_message", "text": "m"})
	}

	require.LessOrEqual(t, len(room.Messages), trimmedChatHistory+maxChatHistory/2)
	require.Greater(t, len(room.Messages), 0)

	guest, guestConn := connect(t, s, "Bob")
	sendMsg(t, s, guest, map[string]any{"type": "join_room", "roomId": roomID})
	require.LessOrEqual(t, len(guestConn.last(t, "room_joined")["messages"].([]any)), joinChatHistory)
}
