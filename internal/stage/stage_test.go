package stage

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/audiolyze/stage/internal/logger"
	"github.com/audiolyze/stage/internal/metrics"
)

// fakeConn records every enqueued frame for assertions.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeConn) Enqueue(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, frame := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(frame, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) byType(t *testing.T, msgType string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range f.messages(t) {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) last(t *testing.T, msgType string) map[string]any {
	t.Helper()
	msgs := f.byType(t, msgType)
	require.NotEmpty(t, msgs, "expected a %q message", msgType)
	return msgs[len(msgs)-1]
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

type fakeUploads struct {
	mu      sync.Mutex
	removed []string
}

func (f *fakeUploads) FilenameFromURL(url string) (string, bool) {
	const prefix = "/rooms/uploads/"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):], true
	}
	return "", false
}

func (f *fakeUploads) Remove(filename string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, filename)
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	log := logger.New(logger.Config{Level: slog.LevelError})
	if opts.Now == nil {
		base := time.Unix(1700000000, 0)
		opts.Now = func() time.Time { return base }
	}
	return NewServer(log, metrics.New(prometheus.NewRegistry()), opts)
}

func connect(t *testing.T, s *Server, name string) (*User, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	u := s.Connect(conn)
	if name != "" {
		sendMsg(t, s, u, map[string]any{"type": "set_username", "name": name})
	}
	conn.reset()
	return u, conn
}

func sendMsg(t *testing.T, s *Server, u *User, msg map[string]any) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	s.HandleMessage(u, raw)
}

// hostRoom creates a room for u, makes it public so others can join, and
// returns its ID.
func hostRoom(t *testing.T, s *Server, u *User, conn *fakeConn, name string) string {
	t.Helper()
	sendMsg(t, s, u, map[string]any{"type": "create_room", "name": name})
	created := conn.last(t, "room_created")
	room := created["room"].(map[string]any)
	sendMsg(t, s, u, map[string]any{"type": "toggle_public"})
	return room["id"].(string)
}
