package config

import (
	"strings"
	"time"

	"github.com/mx-space/contentgen/internal/models"
)

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Results string `yaml:"results"`
	Uploads string `yaml:"uploads"`
	Assets  string `yaml:"assets"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// LLMConfig configures the chat-completion endpoint shared by every content kind.
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	TopP            float64       `yaml:"top_p"`
	Timeout         time.Duration `yaml:"timeout"`
	CarouselTimeout time.Duration `yaml:"carousel_timeout"`
	ComicMaxTokens  int           `yaml:"comic_max_tokens"`
	ComicTemp       float64       `yaml:"comic_temperature"`
}

// Configured reports whether key, base url and model are all present.
func (c LLMConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" &&
		strings.TrimSpace(c.BaseURL) != "" &&
		strings.TrimSpace(c.Model) != ""
}

// Params returns the sampling parameters for one content kind.
func (c LLMConfig) Params(kind models.Kind) models.ModelParams {
	p := models.ModelParams{
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		Timeout:     c.Timeout,
	}
	switch kind {
	case models.KindCarousel:
		p.Timeout = c.CarouselTimeout
	case models.KindComicScript:
		if c.ComicMaxTokens > 0 {
			p.MaxTokens = c.ComicMaxTokens
		}
		if c.ComicTemp > 0 {
			p.Temperature = c.ComicTemp
		}
	}
	return p
}

// ImageConfig configures the Ideogram image endpoint.
type ImageConfig struct {
	APIKey            string        `yaml:"api_key"`
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	AspectRatio       string        `yaml:"aspect_ratio"`
	MagicPrompt       string        `yaml:"magic_prompt"`
	StylePrefix       string        `yaml:"style_prefix"`
	NegativePrompt    string        `yaml:"negative_prompt"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Archive           bool          `yaml:"archive"`
}

// S3Options enables mirroring bundles and archived images to an S3 bucket.
type S3Options struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyleAccess bool   `yaml:"path_style_access"`
	Prefix          string `yaml:"prefix"`
	CustomDomain    string `yaml:"custom_domain"`
}

// Enabled reports whether enough is set to build a client.
func (o S3Options) Enabled() bool {
	return strings.TrimSpace(o.Bucket) != "" && strings.TrimSpace(o.Region) != ""
}

type StorageConfig struct {
	S3 S3Options `yaml:"s3"`
}

// UploadLimits holds per-format size caps in bytes.
type UploadLimits struct {
	PDF   int64
	Email int64
	Text  int64
}

// For returns the cap for a document format, or 0 when the format is unknown.
func (u UploadLimits) For(format models.Format) int64 {
	switch format {
	case models.FormatPDF:
		return u.PDF
	case models.FormatEML, models.FormatMSG:
		return u.Email
	case models.FormatTXT:
		return u.Text
	}
	return 0
}

// ContentToggles switch individual outputs on and off.
type ContentToggles struct {
	LinkedIn     bool `yaml:"linkedin"`
	Instagram    bool `yaml:"instagram"`
	ComicScripts bool `yaml:"comic_scripts"`
	ComicImages  bool `yaml:"comic_images"`
}

// BrandProfile is optional company context appended to social prompts.
type BrandProfile struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Voice          string   `yaml:"voice"`
	Tone           string   `yaml:"tone"`
	TargetAudience string   `yaml:"target_audience"`
	Goals          []string `yaml:"goals"`
}

func (b BrandProfile) IsZero() bool {
	return b.Name == "" && b.Description == "" && b.Voice == "" && b.Tone == "" &&
		b.TargetAudience == "" && len(b.Goals) == 0
}

type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}
