package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	"github.com/mx-space/contentgen/internal/config"
)

// Anthropic requires max_tokens on every request.
const defaultJetifyMaxTokens = 2000

// JetifyClient drives native Anthropic or OpenAI models through the jetify
// adapters. Temperature and top_p are left to the provider defaults.
type JetifyClient struct {
	settings
	provider   string
	httpClient *http.Client
}

func NewJetifyClient(cfg config.LLMConfig, httpClient *http.Client) *JetifyClient {
	return &JetifyClient{
		settings: settings{
			apiKey:  strings.TrimSpace(cfg.APIKey),
			baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			model:   strings.TrimSpace(cfg.Model),
		},
		provider:   cfg.Provider,
		httpClient: httpClient,
	}
}

func (c *JetifyClient) Complete(ctx context.Context, req Request) (string, error) {
	modelID, err := c.resolve(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultJetifyMaxTokens
	}
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(req.Prompt),
		jetai.WithModel(c.languageModel(modelID)),
		jetai.WithMaxOutputTokens(maxTokens),
	)
	if err != nil {
		var anthropicErr *anthropicclient.Error
		if errors.As(err, &anthropicErr) {
			return "", statusError(c.provider, anthropicErr.StatusCode, err)
		}
		var openaiErr *openaiclient.Error
		if errors.As(err, &openaiErr) {
			return "", statusError(c.provider, openaiErr.StatusCode, err)
		}
		return "", transportError(ctx, err)
	}
	return extractText(resp)
}

func (c *JetifyClient) languageModel(modelID string) jetapi.LanguageModel {
	if c.provider == config.ProviderAnthropic {
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(c.apiKey),
			anthropicoption.WithMaxRetries(0),
			anthropicoption.WithBaseURL(c.baseURL),
		}
		if c.httpClient != nil {
			opts = append(opts, anthropicoption.WithHTTPClient(c.httpClient))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(c.apiKey),
		openaioption.WithMaxRetries(0),
		openaioption.WithBaseURL(normalizeOpenAIBaseURL(c.baseURL) + "/"),
	}
	if c.httpClient != nil {
		opts = append(opts, openaioption.WithHTTPClient(c.httpClient))
	}
	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
}

func buildPromptMessages(prompt string) []jetapi.Message {
	return []jetapi.Message{
		&jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)},
	}
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errEmptyReply
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	if strings.TrimSpace(full.String()) == "" {
		return "", errEmptyReply
	}
	return full.String(), nil
}
