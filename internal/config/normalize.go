package config

import (
	"fmt"
	"strings"
	"time"
)

func applyRawRedisConfig(cfg RedisConfig, raw rawRedisConfig) RedisConfig {
	if v := strings.TrimSpace(raw.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
		// An explicit host wins over the default URL.
		if strings.TrimSpace(raw.URL) == "" {
			cfg.URL = ""
		}
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Password); v != "" {
		cfg.Password = v
	}
	if raw.DB != nil {
		cfg.DB = *raw.DB
	}
	if raw.TLS != nil {
		cfg.TLS = *raw.TLS
	}
	return normalizeRedisConfig(cfg)
}

func normalizeRedisConfig(cfg RedisConfig) RedisConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" && cfg.URL == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
		return trimmed
	}
	return "redis://" + trimmed
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func normalizeProviderType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai-compatible", "openai_compatible", "openaicompatible", "xai", "grok":
		return ProviderOpenAICompatible
	case "openai":
		return ProviderOpenAI
	case "anthropic", "claude":
		return ProviderAnthropic
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizeRuntimePaths(paths RuntimePathsConfig) RuntimePathsConfig {
	paths.Logs = strings.TrimSpace(paths.Logs)
	paths.Results = strings.TrimSpace(paths.Results)
	paths.Uploads = strings.TrimSpace(paths.Uploads)
	paths.Assets = strings.TrimSpace(paths.Assets)
	return paths
}

func normalizeBrand(b BrandProfile) BrandProfile {
	b.Name = strings.TrimSpace(b.Name)
	b.Description = strings.TrimSpace(b.Description)
	b.Voice = strings.TrimSpace(b.Voice)
	b.Tone = strings.TrimSpace(b.Tone)
	b.TargetAudience = strings.TrimSpace(b.TargetAudience)
	goals := make([]string, 0, len(b.Goals))
	for _, g := range b.Goals {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, g)
		}
	}
	if len(goals) == 0 {
		goals = nil
	}
	b.Goals = goals
	return b
}

func parseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q, expected > 0", field, raw)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
