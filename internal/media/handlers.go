package media

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/audiolyze/stage/internal/errors"
	"github.com/audiolyze/stage/internal/logger"
)

// Handler exposes the upload/serve edge endpoints.
type Handler struct {
	store    *Store
	maxBytes int64
	logger   *logger.Logger
}

// NewHandler creates a Handler over the given store. maxUploadMB bounds the
// accepted multipart body size.
func NewHandler(store *Store, maxUploadMB int64, log *logger.Logger) *Handler {
	return &Handler{
		store:    store,
		maxBytes: maxUploadMB << 20,
		logger:   log.WithComponent("media_handler"),
	}
}

// UploadAudio handles POST /upload-audio. The blob is not bound to any room
// here; binding happens when a host references the returned URL in
// set_audio_source.
func (h *Handler) UploadAudio(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apierrors.BadRequest(c, "missing file field", nil)
		return
	}
	defer file.Close()

	filename, err := h.store.Save(file, header.Filename)
	if err != nil {
		h.logger.Error("upload failed", slog.String("error", err.Error()))
		apierrors.Internal(c, "failed to store upload", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"url":      h.store.URL(filename),
		"filename": filename,
	})
}

// ServeUpload handles GET /rooms/uploads/:filename.
func (h *Handler) ServeUpload(c *gin.Context) {
	filename := c.Param("filename")
	path, ok := h.store.Path(filename)
	if !ok {
		apierrors.NotFound(c, "file not found", nil)
		return
	}
	c.File(path)
}
