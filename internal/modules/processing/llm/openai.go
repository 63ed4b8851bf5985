package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/mx-space/contentgen/internal/config"
)

// OpenAIClient calls /chat/completions on any OpenAI-compatible endpoint.
type OpenAIClient struct {
	settings
	client openai.Client
}

func NewOpenAIClient(cfg config.LLMConfig, httpClient *http.Client) *OpenAIClient {
	s := settings{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: normalizeOpenAIBaseURL(cfg.BaseURL),
		model:   strings.TrimSpace(cfg.Model),
	}
	opts := []option.RequestOption{
		option.WithAPIKey(s.apiKey),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		opts = append(opts, option.WithBaseURL(s.baseURL+"/"))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAIClient{settings: s, client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	model, err := c.resolve(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
		TopP:        openai.Float(req.TopP),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", statusError("openai-compatible", apiErr.StatusCode, err)
		}
		return "", transportError(ctx, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}
