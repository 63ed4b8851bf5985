package config

// rawAppConfig mirrors the YAML file. Pointer fields distinguish "unset"
// from an explicit zero; durations and sizes are kept as strings so
// "90s" and "10MB" can be parsed with proper error messages.
type rawAppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"`
	Timezone       string             `yaml:"timezone"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	Paths          RuntimePathsConfig `yaml:"paths"`
	Redis          rawRedisConfig     `yaml:"redis"`
	LLM            rawLLMConfig       `yaml:"llm"`
	Image          rawImageConfig     `yaml:"image"`
	Storage        rawStorageConfig   `yaml:"storage"`
	Upload         rawUploadLimits    `yaml:"upload"`
	Toggles        rawToggles         `yaml:"toggles"`
	Brand          BrandProfile       `yaml:"brand"`
	RateLimit      rawRateLimit       `yaml:"rate_limit"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawLLMConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	MaxTokens       *int          `yaml:"max_tokens"`
	Temperature     *float64      `yaml:"temperature"`
	TopP            *float64      `yaml:"top_p"`
	Timeout         string        `yaml:"timeout"`
	CarouselTimeout string        `yaml:"carousel_timeout"`
	Comic           rawComicModel `yaml:"comic"`
}

type rawComicModel struct {
	MaxTokens   *int     `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

type rawImageConfig struct {
	APIKey            string   `yaml:"api_key"`
	Endpoint          string   `yaml:"endpoint"`
	Model             string   `yaml:"model"`
	AspectRatio       string   `yaml:"aspect_ratio"`
	MagicPrompt       string   `yaml:"magic_prompt"`
	StylePrefix       string   `yaml:"style_prefix"`
	NegativePrompt    string   `yaml:"negative_prompt"`
	Timeout           string   `yaml:"timeout"`
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
	Archive           *bool    `yaml:"archive"`
}

type rawStorageConfig struct {
	S3 rawS3Options `yaml:"s3"`
}

type rawS3Options struct {
	Bucket          string  `yaml:"bucket"`
	Region          string  `yaml:"region"`
	Endpoint        string  `yaml:"endpoint"`
	AccessKeyID     string  `yaml:"access_key_id"`
	SecretAccessKey string  `yaml:"secret_access_key"`
	PathStyleAccess *bool   `yaml:"path_style_access"`
	Prefix          *string `yaml:"prefix"`
	CustomDomain    string  `yaml:"custom_domain"`
}

type rawUploadLimits struct {
	PDF   string `yaml:"pdf"`
	Email string `yaml:"email"`
	Text  string `yaml:"txt"`
}

type rawToggles struct {
	LinkedIn     *bool `yaml:"linkedin"`
	Instagram    *bool `yaml:"instagram"`
	ComicScripts *bool `yaml:"comic_scripts"`
	ComicImages  *bool `yaml:"comic_images"`
}

type rawRateLimit struct {
	Max    *int   `yaml:"max"`
	Window string `yaml:"window"`
}
