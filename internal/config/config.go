// Package config loads process-level configuration from environment
// variables. Everything has a default so the zero environment works.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures the environment-driven settings for the CLI and the
// event server. Library callers configure the same things through options
// instead.
type Config struct {
	// DefaultLocale is the locale used when none has been set explicitly.
	DefaultLocale string

	// ModelDir is the directory for downloaded recognition models.
	ModelDir string

	// LegacyServiceURL is the websocket endpoint for the legacy cloud
	// dictation service.
	LegacyServiceURL string

	// StartTimeout bounds how long a session start may take. Zero means
	// wait indefinitely.
	StartTimeout time.Duration

	// Platform overrides platform detection when set ("apple" or "other").
	Platform string

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string

	// MetricsAddr is the listen address for the Prometheus endpoint used
	// by the serve command.
	MetricsAddr string
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		DefaultLocale:    envOrDefault("VOXKIT_DEFAULT_LOCALE", "en-US"),
		ModelDir:         os.Getenv("VOXKIT_MODEL_DIR"),
		LegacyServiceURL: envOrDefault("VOXKIT_LEGACY_URL", "wss://dictation.voxkit.dev/v1/stream"),
		StartTimeout:     envDuration("VOXKIT_START_TIMEOUT", 0),
		Platform:         os.Getenv("VOXKIT_PLATFORM"),
		LogLevel:         envOrDefault("VOXKIT_LOG_LEVEL", "info"),
		MetricsAddr:      envOrDefault("VOXKIT_METRICS_ADDR", ":9090"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
