package stage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/audiolyze/stage/internal/ident"
	"github.com/audiolyze/stage/internal/logger"
	"github.com/audiolyze/stage/internal/metrics"
)

// UploadStore is the slice of the media store the stage needs: mapping served
// URLs back to filenames for ownership tracking, and deleting blobs when a
// room is torn down.
type UploadStore interface {
	FilenameFromURL(url string) (string, bool)
	Remove(filename string)
}

// Downloader localizes a remote track and returns the URL it will be served
// from.
type Downloader interface {
	DownloadAudio(ctx context.Context, remoteURL string) (string, error)
}

// Options wires the stage server's collaborators. Any of them may be nil or
// zero, in which case the corresponding feature degrades gracefully.
type Options struct {
	Uploads    UploadStore
	Downloader Downloader

	DownloadTimeout        time.Duration
	MaxConcurrentDownloads int64

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Server holds all live coordination state. A single lock guards the registry
// and every user and room record: membership moves span rooms (host visits)
// and public listing fan-outs span all users, so one lock is the discipline
// that keeps every broadcast a consistent snapshot. Nothing slow happens
// under it; network writes are handled by per-connection write pumps and
// downloads by the pre-fetcher's own goroutines.
type Server struct {
	mu sync.Mutex

	registry *registry

	uploads    UploadStore
	downloader Downloader
	dlSem      *semaphore.Weighted
	dlTimeout  time.Duration

	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewServer creates a stage server.
func NewServer(log *logger.Logger, m *metrics.Metrics, opts Options) *Server {
	maxDownloads := opts.MaxConcurrentDownloads
	if maxDownloads <= 0 {
		maxDownloads = 3
	}
	dlTimeout := opts.DownloadTimeout
	if dlTimeout <= 0 {
		dlTimeout = 2 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		registry:   newRegistry(),
		uploads:    opts.Uploads,
		downloader: opts.Downloader,
		dlSem:      semaphore.NewWeighted(maxDownloads),
		dlTimeout:  dlTimeout,
		now:        now,
		logger:     log.WithComponent("stage"),
		metrics:    m,
	}
}

func (s *Server) nowSeconds() float64 {
	return float64(s.now().UnixNano()) / float64(time.Second)
}

// Connect registers a new participant and sends the connected greeting with
// the current public listing.
func (s *Server) Connect(conn transport) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{ID: ident.New(), Name: "Anon", conn: conn}
	s.registry.addUser(u)
	s.metrics.OpenConnections.Inc()

	s.sendTo(u, connectedMsg{
		Type:        "connected",
		UserID:      u.ID,
		PublicRooms: s.registry.publicSummaries(),
	})

	s.logger.Debug("user connected", slog.String("user_id", u.ID))
	return u
}

// Disconnect tears down a departed participant: visited rooms see a leave,
// hosted rooms are destroyed, and the user record is dropped.
func (s *Server) Disconnect(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.user(u.ID) == nil {
		return
	}

	if u.InRoomID != "" && u.InRoomID != u.HostedRoomID {
		if r := s.registry.room(u.InRoomID); r != nil {
			if u.HostedRoomID != "" {
				s.visitedLeave(u, r)
			} else {
				s.memberLeave(u, r)
			}
		}
	}
	if hosted := s.registry.room(u.HostedRoomID); hosted != nil {
		s.destroyRoom(hosted, "Host left the stage", u)
	}

	s.registry.removeUser(u.ID)
	s.metrics.OpenConnections.Dec()
	s.logger.Debug("user disconnected", slog.String("user_id", u.ID))
}

// PublicRooms returns the current public listing, for the HTTP endpoint.
func (s *Server) PublicRooms() []RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.publicSummaries()
}
