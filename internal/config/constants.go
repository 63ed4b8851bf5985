package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	// EnvPrefix prefixes environment overrides for secrets.
	EnvPrefix = "CONTENTGEN_"

	defaultPort     = 2333
	defaultEnv      = "development"
	defaultRedisURL = "redis://localhost:6379/0"

	defaultLLMProvider     = ProviderOpenAICompatible
	defaultLLMBaseURL      = "https://api.x.ai/v1"
	defaultLLMModel        = "grok-beta"
	defaultMaxTokens       = 2000
	defaultTemperature     = 0.7
	defaultTopP            = 1.0
	defaultLLMTimeout      = 120 * time.Second
	defaultCarouselTimeout = 180 * time.Second
	defaultComicMaxTokens  = 1500
	defaultComicTemp       = 0.6

	defaultImageEndpoint    = "https://api.ideogram.ai/generate"
	defaultImageModel       = "V_2"
	defaultImageAspect      = "ASPECT_1_1"
	defaultImageMagicPrompt = "AUTO"
	defaultImageTimeout     = 30 * time.Second
	defaultImageRPS         = 1.0
	defaultStylePrefix      = "Comic book style, clear lines, vibrant colors, dynamic composition."
	defaultNegativePrompt   = "inconsistent characters, blurry, low quality, deformed faces, multiple styles"

	defaultPDFLimit   = "10MB"
	defaultEmailLimit = "15MB"
	defaultTextLimit  = "5MB"

	defaultRateLimitMax    = 30
	defaultRateLimitWindow = time.Second

	defaultS3Prefix = "contentgen"
)

// LLM provider types. openai-compatible speaks chat completions to any
// compatible endpoint; openai and anthropic go through the jetify adapters.
const (
	ProviderOpenAICompatible = "openai-compatible"
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
)

var providerBaseURLs = map[string]string{
	ProviderOpenAICompatible: defaultLLMBaseURL,
	ProviderOpenAI:           "https://api.openai.com/v1",
	ProviderAnthropic:        "https://api.anthropic.com",
}
