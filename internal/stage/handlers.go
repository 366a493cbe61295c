package stage

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/audiolyze/stage/internal/logger"
)

// Handler exposes the stage over HTTP: the WebSocket entry point and the
// polling fallback for the public room listing.
type Handler struct {
	server   *Server
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHandler creates a Handler over the given server.
func NewHandler(server *Server, log *logger.Logger) *Handler {
	return &Handler{
		server: server,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the HTTP middleware layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.WithComponent("stage_handler"),
	}
}

// ServeWS handles GET /rooms/ws, upgrading to a stage connection. It blocks
// for the lifetime of the connection.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newWSClient(conn)
	user := h.server.Connect(client)
	go client.writePump()

	client.readPump(func(data []byte) {
		h.server.HandleMessage(user, data)
	})

	h.server.Disconnect(user)
	client.Close()
}

// ListPublicRooms handles GET /rooms/public.
func (h *Handler) ListPublicRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.server.PublicRooms())
}
