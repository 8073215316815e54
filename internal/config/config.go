package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Feed contains configuration for the timeline feed source.
type Feed struct {
	BaseURL        string `toml:"base_url"`
	AuthToken      string `toml:"auth_token"`
	CSRFToken      string `toml:"csrf_token"`
	CookiesFile    string `toml:"cookies_file"`
	SourcesFile    string `toml:"sources_file"`
	PostBudget     int    `toml:"post_budget"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Curator contains configuration for the LLM curation client.
type Curator struct {
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	Model              string  `toml:"model"`
	Referer            string  `toml:"referer"`
	Title              string  `toml:"title"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	MinInterestScore   float64 `toml:"min_interest_score"`
	MaxItemsPerEpisode int     `toml:"max_items_per_episode"`
}

// Voice contains configuration for the speech synthesis client.
type Voice struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Format         string `toml:"format"`
	HostAVoice     string `toml:"host_a_voice"`
	HostBVoice     string `toml:"host_b_voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Podcast contains configuration for episode presentation.
type Podcast struct {
	Title string `toml:"title"`
	HostA string `toml:"host_a"`
	HostB string `toml:"host_b"`
}

// Scheduler contains configuration for run cadence and recovery timing.
type Scheduler struct {
	CollectionIntervalMinutes int `toml:"collection_interval_minutes"`
	GenerationHourUTC         int `toml:"generation_hour_utc"`
	WindowHours               int `toml:"window_hours"`
	StepTimeoutSeconds        int `toml:"step_timeout_seconds"`
	StaleRunGraceMinutes      int `toml:"stale_run_grace_minutes"`
	HeartbeatIntervalSeconds  int `toml:"heartbeat_interval_seconds"`
}

// Store contains configuration for item persistence behavior.
type Store struct {
	EngagementMerge string `toml:"engagement_merge"`
	RetentionDays   int    `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Feedcast.
//
// Configuration sections by subsystem:
//   - Paths: data/output/log directories and API bind address
//   - Feed: timeline feed source connection and budgets
//   - Curator: LLM scoring and script generation settings
//   - Voice: speech synthesis provider settings
//   - Podcast: episode title and host presentation
//   - Scheduler: run cadence, per-step timeouts, stale-run grace
//   - Store: engagement merge mode and retention
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Feed      Feed      `toml:"feed"`
	Curator   Curator   `toml:"curator"`
	Voice     Voice     `toml:"voice"`
	Podcast   Podcast   `toml:"podcast"`
	Scheduler Scheduler `toml:"scheduler"`
	Store     Store     `toml:"store"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/feedcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/feedcast/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("feedcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite item database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "feedcast.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
