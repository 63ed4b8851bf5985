// Package llm sends single-turn prompts to a chat-completion model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
)

// Request is one completion call. Zero Model falls back to the client default.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// Client returns the model's text reply for a single user message.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// New picks the implementation for cfg.Provider. httpClient may be nil.
func New(cfg config.LLMConfig, httpClient *http.Client) Client {
	switch cfg.Provider {
	case config.ProviderAnthropic, config.ProviderOpenAI:
		return NewJetifyClient(cfg, httpClient)
	default:
		return NewOpenAIClient(cfg, httpClient)
	}
}

var errEmptyReply = fmt.Errorf("%w: empty response from model", apperr.ErrSchema)

// settings is the part of the config every client validates before a call.
type settings struct {
	apiKey  string
	baseURL string
	model   string
}

func (s settings) resolve(req Request) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.model
	}
	var missing []string
	if s.apiKey == "" {
		missing = append(missing, "api key")
	}
	if s.baseURL == "" {
		missing = append(missing, "base url")
	}
	if model == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return "", apperr.Configf("llm %s not configured", strings.Join(missing, ", "))
	}
	return model, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// transportError classifies a failed call. A deadline on ctx wins over
// whatever the SDK wrapped it in.
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperr.ErrTimeout, err)
	}
	return apperr.Transport(err)
}

func statusError(provider string, status int, err error) error {
	return fmt.Errorf("%w: %s HTTP %d: %v", apperr.ErrTransport, provider, status, err)
}

// normalizeOpenAIBaseURL makes sure the base ends in /v1.
func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
