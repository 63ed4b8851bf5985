package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime configuration loaded from YAML.
type AppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"` // "development" | "production"
	Timezone       string             `yaml:"timezone"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	Paths          RuntimePathsConfig `yaml:"paths"`
	Redis          RedisConfig        `yaml:"redis"`
	LLM            LLMConfig          `yaml:"llm"`
	Image          ImageConfig        `yaml:"image"`
	Storage        StorageConfig      `yaml:"storage"`
	Upload         UploadLimits       `yaml:"-"`
	Toggles        ContentToggles     `yaml:"toggles"`
	Brand          BrandProfile       `yaml:"brand"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`

	baseDir string
}

// Load reads the YAML file at configPath, merges it over the defaults and
// applies CONTENTGEN_* environment overrides.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.baseDir = abs
	}
	return cfg, nil
}

// Parse decodes YAML content on top of Default(). Unknown keys are rejected.
func Parse(content []byte) (*AppConfig, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, err
	}
	applyEnv(&cfg, os.LookupEnv)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() AppConfig {
	cfg := AppConfig{
		Port:  defaultPort,
		Env:   defaultEnv,
		Redis: RedisConfig{URL: defaultRedisURL},
		LLM: LLMConfig{
			Provider:        defaultLLMProvider,
			BaseURL:         defaultLLMBaseURL,
			Model:           defaultLLMModel,
			MaxTokens:       defaultMaxTokens,
			Temperature:     defaultTemperature,
			TopP:            defaultTopP,
			Timeout:         defaultLLMTimeout,
			CarouselTimeout: defaultCarouselTimeout,
			ComicMaxTokens:  defaultComicMaxTokens,
			ComicTemp:       defaultComicTemp,
		},
		Image: ImageConfig{
			Endpoint:          defaultImageEndpoint,
			Model:             defaultImageModel,
			AspectRatio:       defaultImageAspect,
			MagicPrompt:       defaultImageMagicPrompt,
			StylePrefix:       defaultStylePrefix,
			NegativePrompt:    defaultNegativePrompt,
			Timeout:           defaultImageTimeout,
			RequestsPerSecond: defaultImageRPS,
		},
		Storage: StorageConfig{S3: S3Options{Prefix: defaultS3Prefix}},
		Toggles: ContentToggles{LinkedIn: true, Instagram: true, ComicScripts: true, ComicImages: true},
		RateLimit: RateLimitConfig{
			Max:    defaultRateLimitMax,
			Window: defaultRateLimitWindow,
		},
	}
	cfg.Upload = UploadLimits{
		PDF:   mustSize(defaultPDFLimit),
		Email: mustSize(defaultEmailLimit),
		Text:  mustSize(defaultTextLimit),
	}
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}

	cfg.Paths = normalizeRuntimePaths(RuntimePathsConfig{
		Logs:    firstNonEmpty(raw.Paths.Logs, cfg.Paths.Logs),
		Results: firstNonEmpty(raw.Paths.Results, cfg.Paths.Results),
		Uploads: firstNonEmpty(raw.Paths.Uploads, cfg.Paths.Uploads),
		Assets:  firstNonEmpty(raw.Paths.Assets, cfg.Paths.Assets),
	})

	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw.Redis)

	if err := applyRawLLMConfig(&cfg.LLM, raw.LLM); err != nil {
		return err
	}
	if err := applyRawImageConfig(&cfg.Image, raw.Image); err != nil {
		return err
	}
	applyRawS3Options(&cfg.Storage.S3, raw.Storage.S3)

	var err error
	if cfg.Upload.PDF, err = parseSize("upload.pdf", raw.Upload.PDF, cfg.Upload.PDF); err != nil {
		return err
	}
	if cfg.Upload.Email, err = parseSize("upload.email", raw.Upload.Email, cfg.Upload.Email); err != nil {
		return err
	}
	if cfg.Upload.Text, err = parseSize("upload.txt", raw.Upload.Text, cfg.Upload.Text); err != nil {
		return err
	}

	if raw.Toggles.LinkedIn != nil {
		cfg.Toggles.LinkedIn = *raw.Toggles.LinkedIn
	}
	if raw.Toggles.Instagram != nil {
		cfg.Toggles.Instagram = *raw.Toggles.Instagram
	}
	if raw.Toggles.ComicScripts != nil {
		cfg.Toggles.ComicScripts = *raw.Toggles.ComicScripts
	}
	if raw.Toggles.ComicImages != nil {
		cfg.Toggles.ComicImages = *raw.Toggles.ComicImages
	}

	cfg.Brand = normalizeBrand(raw.Brand)

	if raw.RateLimit.Max != nil {
		cfg.RateLimit.Max = *raw.RateLimit.Max
	}
	if cfg.RateLimit.Window, err = parseDuration("rate_limit.window", raw.RateLimit.Window, cfg.RateLimit.Window); err != nil {
		return err
	}

	cfg.Env = normalizeEnv(cfg.Env)
	return nil
}

func applyRawLLMConfig(cfg *LLMConfig, raw rawLLMConfig) error {
	if v := strings.TrimSpace(raw.Provider); v != "" {
		cfg.Provider = normalizeProviderType(v)
		if base, ok := providerBaseURLs[cfg.Provider]; ok {
			cfg.BaseURL = base
		}
	}
	if v := strings.TrimSpace(raw.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.Model); v != "" {
		cfg.Model = v
	}
	if raw.MaxTokens != nil {
		cfg.MaxTokens = *raw.MaxTokens
	}
	if raw.Temperature != nil {
		cfg.Temperature = *raw.Temperature
	}
	if raw.TopP != nil {
		cfg.TopP = *raw.TopP
	}
	if raw.Comic.MaxTokens != nil {
		cfg.ComicMaxTokens = *raw.Comic.MaxTokens
	}
	if raw.Comic.Temperature != nil {
		cfg.ComicTemp = *raw.Comic.Temperature
	}

	var err error
	if cfg.Timeout, err = parseDuration("llm.timeout", raw.Timeout, cfg.Timeout); err != nil {
		return err
	}
	if cfg.CarouselTimeout, err = parseDuration("llm.carousel_timeout", raw.CarouselTimeout, cfg.CarouselTimeout); err != nil {
		return err
	}
	return nil
}

func applyRawImageConfig(cfg *ImageConfig, raw rawImageConfig) error {
	if v := strings.TrimSpace(raw.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(raw.Endpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(raw.Model); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(raw.AspectRatio); v != "" {
		cfg.AspectRatio = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(raw.MagicPrompt); v != "" {
		cfg.MagicPrompt = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(raw.StylePrefix); v != "" {
		cfg.StylePrefix = v
	}
	if v := strings.TrimSpace(raw.NegativePrompt); v != "" {
		cfg.NegativePrompt = v
	}
	if raw.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *raw.RequestsPerSecond
	}
	if raw.Archive != nil {
		cfg.Archive = *raw.Archive
	}

	var err error
	cfg.Timeout, err = parseDuration("image.timeout", raw.Timeout, cfg.Timeout)
	return err
}

func applyRawS3Options(cfg *S3Options, raw rawS3Options) {
	if v := strings.TrimSpace(raw.Bucket); v != "" {
		cfg.Bucket = v
	}
	if v := strings.TrimSpace(raw.Region); v != "" {
		cfg.Region = v
	}
	if v := strings.TrimSpace(raw.Endpoint); v != "" {
		cfg.Endpoint = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.AccessKeyID); v != "" {
		cfg.AccessKeyID = v
	}
	if v := strings.TrimSpace(raw.SecretAccessKey); v != "" {
		cfg.SecretAccessKey = v
	}
	if raw.PathStyleAccess != nil {
		cfg.PathStyleAccess = *raw.PathStyleAccess
	}
	if raw.Prefix != nil {
		cfg.Prefix = strings.Trim(strings.TrimSpace(*raw.Prefix), "/")
	}
	if v := strings.TrimSpace(raw.CustomDomain); v != "" {
		cfg.CustomDomain = strings.TrimRight(v, "/")
	}
}

// applyEnv lets secrets stay out of the YAML file.
func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) {
	set := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("LLM_API_KEY", &cfg.LLM.APIKey)
	set("LLM_BASE_URL", &cfg.LLM.BaseURL)
	set("LLM_MODEL", &cfg.LLM.Model)
	set("IMAGE_API_KEY", &cfg.Image.APIKey)
	set("REDIS_URL", &cfg.Redis.URL)
	set("S3_ACCESS_KEY_ID", &cfg.Storage.S3.AccessKeyID)
	set("S3_SECRET_ACCESS_KEY", &cfg.Storage.S3.SecretAccessKey)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Redis.Port < 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	switch c.LLM.Provider {
	case ProviderOpenAICompatible, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("invalid llm.provider %q, expected one of %s, %s, %s",
			c.LLM.Provider, ProviderOpenAICompatible, ProviderOpenAI, ProviderAnthropic)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("invalid llm.max_tokens %d, expected > 0", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid llm.temperature %v, expected 0-2", c.LLM.Temperature)
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		return fmt.Errorf("invalid llm.top_p %v, expected 0-1", c.LLM.TopP)
	}
	if c.Image.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid image.requests_per_second %v, expected > 0", c.Image.RequestsPerSecond)
	}
	if c.RateLimit.Max < 0 {
		return fmt.Errorf("invalid rate_limit.max %d, expected >= 0", c.RateLimit.Max)
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	return c.resolve(c.Paths.Logs, "logs")
}

func (c *AppConfig) ResultsDir() string {
	return c.resolve(c.Paths.Results, "results")
}

func (c *AppConfig) UploadsDir() string {
	return c.resolve(c.Paths.Uploads, "uploads")
}

func (c *AppConfig) AssetsDir() string {
	return c.resolve(c.Paths.Assets, "assets")
}

func (c *AppConfig) resolve(raw, fallback string) string {
	if c == nil {
		return ResolveRuntimePath("", raw, fallback)
	}
	return ResolveRuntimePath(c.baseDir, raw, fallback)
}

func parseSize(field, raw string, fallback int64) (int64, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fallback, nil
	}
	n, err := units.RAMInBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s %q, expected > 0", field, raw)
	}
	return n, nil
}

func mustSize(raw string) int64 {
	n, err := units.RAMInBytes(raw)
	if err != nil {
		panic(err)
	}
	return n
}
