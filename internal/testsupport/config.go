package testsupport

import (
	"path/filepath"
	"testing"

	"feedcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.OutputDir = filepath.Join(base, "episodes")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Curator.APIKey = "test"
	cfg.Voice.APIKey = "test"
	cfg.Feed.AuthToken = "test-auth"
	cfg.Feed.CSRFToken = "test-csrf"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithEngagementMerge sets the engagement merge mode on the test config.
func WithEngagementMerge(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Store.EngagementMerge = mode
	}
}

// WithGenerationHour sets the daily generation anchor hour on the test config.
func WithGenerationHour(hour int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.GenerationHourUTC = hour
	}
}
