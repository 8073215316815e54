package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Scheduler.GenerationHourUTC != defaultGenerationHourUTC {
		t.Fatalf("expected default generation hour, got %d", cfg.Scheduler.GenerationHourUTC)
	}
	if cfg.Store.EngagementMerge != EngagementOverwrite {
		t.Fatalf("expected default engagement merge, got %q", cfg.Store.EngagementMerge)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
output_dir = "` + filepath.Join(dir, "out") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[scheduler]
generation_hour_utc = 9

[store]
engagement_merge = "Merge-Max"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Scheduler.GenerationHourUTC != 9 {
		t.Fatalf("expected generation hour 9, got %d", cfg.Scheduler.GenerationHourUTC)
	}
	if cfg.Store.EngagementMerge != EngagementMergeMax {
		t.Fatalf("expected merge-max after normalization, got %q", cfg.Store.EngagementMerge)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "data", "feedcast.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "generation hour",
			mutate: func(c *Config) { c.Scheduler.GenerationHourUTC = 24 },
			want:   "generation_hour_utc",
		},
		{
			name:   "engagement merge",
			mutate: func(c *Config) { c.Store.EngagementMerge = "average" },
			want:   "engagement_merge",
		},
		{
			name:   "interest score",
			mutate: func(c *Config) { c.Curator.MinInterestScore = 11 },
			want:   "min_interest_score",
		},
		{
			name:   "voice format",
			mutate: func(c *Config) { c.Voice.Format = "ogg" },
			want:   "voice.format",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[curator]") {
		t.Fatal("expected sample to contain curator section")
	}
}
