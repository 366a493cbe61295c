package analysis

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/audiolyze/stage/internal/logger"
)

// Handler exposes the analysis collaborators as passthrough endpoints so
// browser clients never talk to them directly.
type Handler struct {
	analyzer    Analyzer
	synthesizer Synthesizer
	logger      *logger.Logger
}

// NewHandler creates a Handler over the given collaborators.
func NewHandler(analyzer Analyzer, synthesizer Synthesizer, log *logger.Logger) *Handler {
	return &Handler{
		analyzer:    analyzer,
		synthesizer: synthesizer,
		logger:      log.WithComponent("analysis_handler"),
	}
}

// Analyze handles POST /analyze (multipart audio -> feature report).
func (h *Handler) Analyze(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "missing file field"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "failed to read upload"})
		return
	}

	report, err := h.analyzer.Analyze(c.Request.Context(), header.Filename, audio)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "report": report})
}

// GenerateParams handles POST /generate-params (features -> visual params).
func (h *Handler) GenerateParams(c *gin.Context) {
	features, err := io.ReadAll(c.Request.Body)
	if err != nil || len(features) == 0 {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "missing feature report"})
		return
	}

	params, err := h.synthesizer.Synthesize(c.Request.Context(), json.RawMessage(features))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "params": params})
}

// Score handles POST /score. Crowd scoring is not implemented yet; the
// endpoint returns a fixed placeholder so clients can build against the shape.
// TODO: generate comments and a real score, persist a history.
func (h *Handler) Score(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "score": 8.7, "comments": []string{}})
}

// History handles GET /history. Scoring history is not persisted yet.
func (h *Handler) History(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "history": []any{}})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotConfigured) {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "analysis service not configured"})
		return
	}
	h.logger.Error("collaborator call failed", slog.String("error", err.Error()))
	c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
}
