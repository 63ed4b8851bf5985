// Package imagegen renders comic script panels through the Ideogram API.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
	"github.com/mx-space/contentgen/internal/pkg/objectstore"
)

// Placeholder reasons written into ImagePanel.Error.
const (
	ReasonNoAPIKey          = "Image API key not configured"
	ReasonEmptyDescription  = "Empty panel description"
	ReasonNoURL             = "No image URL in response"
	ReasonMalformedResponse = "Malformed response"
)

const (
	defaultTimeout    = 30 * time.Second
	maxResponseBytes  = 1 << 20
	maxArchiveBytes   = 20 << 20
	errorBodyExcerpt  = 200
	archiveKeyPattern = "images/%s/panel_%d.png"
)

// PanelError is one failed panel. It wraps apperr.ErrImageGeneration.
type PanelError struct {
	Panel  int
	Reason string
	Err    error
}

func (e *PanelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("panel %d: %s: %v", e.Panel, e.Reason, e.Err)
	}
	return fmt.Sprintf("panel %d: %s", e.Panel, e.Reason)
}

func (e *PanelError) Unwrap() []error {
	if e.Err != nil {
		return []error{apperr.ErrImageGeneration, e.Err}
	}
	return []error{apperr.ErrImageGeneration}
}

type Generator struct {
	cfg     config.ImageConfig
	client  *http.Client
	limiter *rate.Limiter
	archive objectstore.Store
	log     *zap.Logger
}

// New builds a Generator. httpClient may be nil; archive may be nil, in
// which case upstream URLs are returned as is.
func New(cfg config.ImageConfig, httpClient *http.Client, archive objectstore.Store, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if !cfg.Archive {
		archive = nil
	}
	return &Generator{
		cfg:     cfg,
		client:  httpClient,
		limiter: rate.NewLimiter(limit, 1),
		archive: archive,
		log:     log,
	}
}

// Configured reports whether an API key is present.
func (g *Generator) Configured() bool {
	return strings.TrimSpace(g.cfg.APIKey) != ""
}

// Render generates one image per panel under a fresh run id.
func (g *Generator) Render(ctx context.Context, script []models.ComicScriptPanel) []models.ImagePanel {
	return g.RenderRun(ctx, uuid.NewString(), script)
}

// RenderRun generates one image per panel, sequentially and in script order.
// The result always has len(script) entries; failed panels carry an empty
// ImageURL, an Error reason and the reason appended to the description.
func (g *Generator) RenderRun(ctx context.Context, runID string, script []models.ComicScriptPanel) []models.ImagePanel {
	out := make([]models.ImagePanel, len(script))
	for i, p := range script {
		out[i] = models.ImagePanel{
			PanelNumber: p.Panel,
			Description: p.Description,
			Dialogue:    p.Dialogue,
		}
	}

	if !g.Configured() {
		for i := range out {
			markFailed(&out[i], ReasonNoAPIKey)
		}
		g.log.Warn("image api key not configured", zap.Int("panels", len(out)))
		return out
	}

	characters := speakers(script)
	for i, p := range script {
		if strings.TrimSpace(p.Description) == "" {
			markFailed(&out[i], ReasonEmptyDescription)
			continue
		}

		previous := ""
		if i > 0 {
			previous = script[i-1].Description
		}
		prompt := buildPrompt(g.cfg.StylePrefix, characters, previous, p.Description, i, len(script))

		url, err := g.generate(ctx, prompt)
		if err != nil {
			var panelErr *PanelError
			reason := err.Error()
			if errors.As(err, &panelErr) {
				reason = panelErr.Reason
			}
			markFailed(&out[i], reason)
			g.log.Warn("panel image failed",
				zap.String("run_id", runID),
				zap.Int("panel", p.Panel),
				zap.String("reason", reason),
				zap.Error(err),
			)
			continue
		}

		out[i].ImageURL = g.archiveImage(ctx, runID, p.Panel, url)
		g.log.Info("panel image generated", zap.String("run_id", runID), zap.Int("panel", p.Panel))
	}
	return out
}

// Failures lists one error per panel without an image.
func Failures(panels []models.ImagePanel) []error {
	var errs []error
	for _, p := range panels {
		if p.ImageURL == "" {
			errs = append(errs, &PanelError{Panel: p.PanelNumber, Reason: p.Error})
		}
	}
	return errs
}

func markFailed(p *models.ImagePanel, reason string) {
	p.ImageURL = ""
	p.Error = reason
	p.Description += " (Error: " + reason + ")"
}

type imageRequest struct {
	Prompt            string `json:"prompt"`
	NegativePrompt    string `json:"negative_prompt,omitempty"`
	Model             string `json:"model,omitempty"`
	AspectRatio       string `json:"aspect_ratio,omitempty"`
	MagicPromptOption string `json:"magic_prompt_option,omitempty"`
}

type generateResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", &PanelError{Reason: err.Error(), Err: apperr.Transport(err)}
	}

	body, err := json.Marshal(map[string]imageRequest{
		"image_request": {
			Prompt:            prompt,
			NegativePrompt:    g.cfg.NegativePrompt,
			Model:             g.cfg.Model,
			AspectRatio:       g.cfg.AspectRatio,
			MagicPromptOption: g.cfg.MagicPrompt,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &PanelError{Reason: "Invalid endpoint", Err: apperr.Configf("%v", err)}
	}
	req.Header.Set("Api-Key", g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		reason := "Request failed"
		if apperr.IsTimeout(err) {
			reason = "Request timed out"
		}
		return "", &PanelError{Reason: reason, Err: apperr.Transport(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &PanelError{Reason: "Request failed", Err: apperr.Transport(err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &PanelError{
			Reason: fmt.Sprintf("HTTP %d", resp.StatusCode),
			Err:    fmt.Errorf("%w: %s", apperr.ErrTransport, excerpt(raw)),
		}
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &PanelError{Reason: ReasonMalformedResponse, Err: err}
	}
	if len(parsed.Data) == 0 || strings.TrimSpace(parsed.Data[0].URL) == "" {
		return "", &PanelError{Reason: ReasonNoURL}
	}
	return strings.TrimSpace(parsed.Data[0].URL), nil
}

// archiveImage copies the upstream image into the object store. Any failure
// keeps the upstream URL.
func (g *Generator) archiveImage(ctx context.Context, runID string, panel int, upstream string) string {
	if g.archive == nil {
		return upstream
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream, nil)
	if err != nil {
		g.log.Warn("archive panel image", zap.Int("panel", panel), zap.Error(err))
		return upstream
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("archive panel image", zap.Int("panel", panel), zap.Error(err))
		return upstream
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		g.log.Warn("archive panel image", zap.Int("panel", panel), zap.Int("status", resp.StatusCode))
		return upstream
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes))
	if err != nil || len(data) == 0 {
		g.log.Warn("archive panel image", zap.Int("panel", panel), zap.Error(err))
		return upstream
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	url, err := g.archive.Put(ctx, fmt.Sprintf(archiveKeyPattern, runID, panel), data, contentType)
	if err != nil {
		g.log.Warn("archive panel image", zap.Int("panel", panel), zap.Error(err))
		return upstream
	}
	return url
}

func excerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > errorBodyExcerpt {
		return s[:errorBodyExcerpt] + "..."
	}
	return s
}
