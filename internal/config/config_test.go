package config

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestLoadDefaults(t *testing.T) {
	is := is.New(t)

	for _, v := range []string{
		"VOXKIT_DEFAULT_LOCALE",
		"VOXKIT_MODEL_DIR",
		"VOXKIT_LEGACY_URL",
		"VOXKIT_START_TIMEOUT",
		"VOXKIT_PLATFORM",
		"VOXKIT_LOG_LEVEL",
		"VOXKIT_METRICS_ADDR",
	} {
		t.Setenv(v, "")
	}

	cfg := Load()
	is.Equal(cfg.DefaultLocale, "en-US")
	is.Equal(cfg.ModelDir, "")
	is.Equal(cfg.StartTimeout, time.Duration(0))
	is.Equal(cfg.LogLevel, "info")
	is.Equal(cfg.MetricsAddr, ":9090")
}

func TestLoadOverrides(t *testing.T) {
	is := is.New(t)

	t.Setenv("VOXKIT_DEFAULT_LOCALE", "es-ES")
	t.Setenv("VOXKIT_MODEL_DIR", "/tmp/models")
	t.Setenv("VOXKIT_START_TIMEOUT", "30s")
	t.Setenv("VOXKIT_PLATFORM", "apple")

	cfg := Load()
	is.Equal(cfg.DefaultLocale, "es-ES")
	is.Equal(cfg.ModelDir, "/tmp/models")
	is.Equal(cfg.StartTimeout, 30*time.Second)
	is.Equal(cfg.Platform, "apple")
}

func TestStartTimeoutPlainSeconds(t *testing.T) {
	is := is.New(t)

	t.Setenv("VOXKIT_START_TIMEOUT", "45")
	cfg := Load()
	is.Equal(cfg.StartTimeout, 45*time.Second)
}

func TestStartTimeoutInvalid(t *testing.T) {
	is := is.New(t)

	t.Setenv("VOXKIT_START_TIMEOUT", "soon")
	cfg := Load()
	is.Equal(cfg.StartTimeout, time.Duration(0))
}
