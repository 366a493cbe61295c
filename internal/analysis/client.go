// Package analysis fronts the external audio-analysis collaborators: a
// feature extractor (analyze(audio) -> FeatureReport) and a generative
// parameter synthesizer (synthesize(features) -> VisualParams). Both live in
// separate services; this package only speaks HTTP to them.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/audiolyze/stage/internal/logger"
)

// ErrNotConfigured is returned when the collaborator's base URL is unset.
var ErrNotConfigured = errors.New("collaborator not configured")

// Analyzer extracts tempo, RMS, spectral features and section boundaries
// from raw audio.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, audio []byte) (json.RawMessage, error)
}

// Synthesizer turns a feature report into visualizer parameters.
type Synthesizer interface {
	Synthesize(ctx context.Context, features json.RawMessage) (json.RawMessage, error)
}

// Client implements Analyzer and Synthesizer over HTTP.
type Client struct {
	analyzerURL    string
	synthesizerURL string
	http           *resty.Client
	logger         *logger.Logger
}

type okEnvelope struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Report json.RawMessage `json:"report"`
	Params json.RawMessage `json:"params"`
}

// NewClient returns a Client for the given collaborator base URLs. Either URL
// may be empty, in which case the corresponding call fails with
// ErrNotConfigured.
func NewClient(analyzerURL, synthesizerURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		analyzerURL:    analyzerURL,
		synthesizerURL: synthesizerURL,
		http:           resty.New().SetTimeout(timeout),
		logger:         log.WithComponent("analysis"),
	}
}

// Analyze posts the audio blob to the analyzer and returns its feature report.
func (c *Client) Analyze(ctx context.Context, filename string, audio []byte) (json.RawMessage, error) {
	if c.analyzerURL == "" {
		return nil, ErrNotConfigured
	}

	var result okEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(audio)).
		SetResult(&result).
		Post(c.analyzerURL + "/analyze")
	if err != nil {
		return nil, fmt.Errorf("calling analyzer: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analyzer returned %s", resp.Status())
	}
	if !result.OK {
		return nil, fmt.Errorf("analyzer error: %s", result.Error)
	}
	return result.Report, nil
}

// Synthesize posts a feature report to the synthesizer and returns the
// generated visualizer parameters.
func (c *Client) Synthesize(ctx context.Context, features json.RawMessage) (json.RawMessage, error) {
	if c.synthesizerURL == "" {
		return nil, ErrNotConfigured
	}

	var result okEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(features).
		SetResult(&result).
		Post(c.synthesizerURL + "/generate-params")
	if err != nil {
		return nil, fmt.Errorf("calling synthesizer: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("synthesizer returned %s", resp.Status())
	}
	if !result.OK {
		return nil, fmt.Errorf("synthesizer error: %s", result.Error)
	}
	return result.Params, nil
}
