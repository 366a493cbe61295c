package soundcloud

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/audiolyze/stage/internal/logger"
)

// Handler exposes the resolver over HTTP. Failures are reported as
// {ok: false, error} bodies rather than HTTP error codes so clients have a
// single response shape to deal with.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a Handler over the given service.
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log.WithComponent("soundcloud_handler")}
}

// Info handles POST /soundcloud/info.
func (h *Handler) Info(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "url is required"})
		return
	}

	result, err := h.service.ResolveInfo(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if result.Type == "track" {
		c.JSON(http.StatusOK, gin.H{
			"ok":       true,
			"type":     "track",
			"title":    result.Track.Title,
			"url":      result.Track.URL,
			"duration": result.Track.Duration,
			"uploader": result.Track.Uploader,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"type":   "playlist",
		"title":  fmt.Sprintf("Playlist (%d tracks)", len(result.Playlist)),
		"tracks": result.Playlist,
	})
}

// Download handles POST /soundcloud/download.
func (h *Handler) Download(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "url is required"})
		return
	}

	fileURL, err := h.service.DownloadAudio(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"file_url": fileURL,
		"filename": fileURL[len(MountPath):],
	})
}

// File handles GET /soundcloud/file/:filename.
func (h *Handler) File(c *gin.Context) {
	path, ok := h.service.Path(c.Param("filename"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "file not found"})
		return
	}
	c.File(path)
}
