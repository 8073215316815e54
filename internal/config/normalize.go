package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFeed(); err != nil {
		return err
	}
	c.normalizeCurator()
	c.normalizeVoice()
	c.normalizePodcast()
	c.normalizeScheduler()
	c.normalizeStore()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeFeed() error {
	c.Feed.BaseURL = strings.TrimSpace(c.Feed.BaseURL)
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = defaultFeedBaseURL
	}
	c.Feed.AuthToken = strings.TrimSpace(c.Feed.AuthToken)
	if c.Feed.AuthToken == "" {
		if value, ok := os.LookupEnv("FEEDCAST_AUTH_TOKEN"); ok {
			c.Feed.AuthToken = strings.TrimSpace(value)
		}
	}
	c.Feed.CSRFToken = strings.TrimSpace(c.Feed.CSRFToken)
	if c.Feed.CSRFToken == "" {
		if value, ok := os.LookupEnv("FEEDCAST_CSRF_TOKEN"); ok {
			c.Feed.CSRFToken = strings.TrimSpace(value)
		}
	}
	var err error
	if strings.TrimSpace(c.Feed.CookiesFile) != "" {
		if c.Feed.CookiesFile, err = expandPath(c.Feed.CookiesFile); err != nil {
			return fmt.Errorf("feed.cookies_file: %w", err)
		}
	}
	if strings.TrimSpace(c.Feed.SourcesFile) != "" {
		if c.Feed.SourcesFile, err = expandPath(c.Feed.SourcesFile); err != nil {
			return fmt.Errorf("feed.sources_file: %w", err)
		}
	}
	if c.Feed.PostBudget <= 0 {
		c.Feed.PostBudget = defaultFeedPostBudget
	}
	if c.Feed.RequestTimeout <= 0 {
		c.Feed.RequestTimeout = defaultFeedRequestTimeout
	}
	return nil
}

func (c *Config) normalizeCurator() {
	c.Curator.BaseURL = strings.TrimSpace(c.Curator.BaseURL)
	if c.Curator.BaseURL == "" {
		c.Curator.BaseURL = defaultCuratorBaseURL
	}
	c.Curator.Model = strings.TrimSpace(c.Curator.Model)
	if c.Curator.Model == "" {
		c.Curator.Model = defaultCuratorModel
	}
	c.Curator.Referer = strings.TrimSpace(c.Curator.Referer)
	if c.Curator.Referer == "" {
		c.Curator.Referer = defaultCuratorReferer
	}
	c.Curator.Title = strings.TrimSpace(c.Curator.Title)
	if c.Curator.Title == "" {
		c.Curator.Title = defaultCuratorTitle
	}
	if c.Curator.TimeoutSeconds <= 0 {
		c.Curator.TimeoutSeconds = defaultCuratorTimeoutSeconds
	}
	if c.Curator.MinInterestScore <= 0 {
		c.Curator.MinInterestScore = defaultCuratorMinInterestScore
	}
	if c.Curator.MaxItemsPerEpisode <= 0 {
		c.Curator.MaxItemsPerEpisode = defaultCuratorMaxItemsPerEpisode
	}
	c.Curator.APIKey = strings.TrimSpace(c.Curator.APIKey)
	if c.Curator.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Curator.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeVoice() {
	c.Voice.BaseURL = strings.TrimSpace(c.Voice.BaseURL)
	if c.Voice.BaseURL == "" {
		c.Voice.BaseURL = defaultVoiceBaseURL
	}
	c.Voice.Model = strings.TrimSpace(c.Voice.Model)
	if c.Voice.Model == "" {
		c.Voice.Model = defaultVoiceModel
	}
	c.Voice.Format = strings.ToLower(strings.TrimSpace(c.Voice.Format))
	if c.Voice.Format == "" {
		c.Voice.Format = defaultVoiceFormat
	}
	if strings.TrimSpace(c.Voice.HostAVoice) == "" {
		c.Voice.HostAVoice = defaultVoiceHostA
	}
	if strings.TrimSpace(c.Voice.HostBVoice) == "" {
		c.Voice.HostBVoice = defaultVoiceHostB
	}
	if c.Voice.TimeoutSeconds <= 0 {
		c.Voice.TimeoutSeconds = defaultVoiceTimeoutSeconds
	}
	c.Voice.APIKey = strings.TrimSpace(c.Voice.APIKey)
	if c.Voice.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Voice.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePodcast() {
	c.Podcast.Title = strings.TrimSpace(c.Podcast.Title)
	if c.Podcast.Title == "" {
		c.Podcast.Title = defaultPodcastTitle
	}
	c.Podcast.HostA = strings.TrimSpace(c.Podcast.HostA)
	if c.Podcast.HostA == "" {
		c.Podcast.HostA = defaultPodcastHostA
	}
	c.Podcast.HostB = strings.TrimSpace(c.Podcast.HostB)
	if c.Podcast.HostB == "" {
		c.Podcast.HostB = defaultPodcastHostB
	}
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.CollectionIntervalMinutes <= 0 {
		c.Scheduler.CollectionIntervalMinutes = defaultCollectionIntervalMinutes
	}
	if c.Scheduler.WindowHours <= 0 {
		c.Scheduler.WindowHours = defaultWindowHours
	}
	if c.Scheduler.StepTimeoutSeconds <= 0 {
		c.Scheduler.StepTimeoutSeconds = defaultStepTimeoutSeconds
	}
	if c.Scheduler.StaleRunGraceMinutes <= 0 {
		c.Scheduler.StaleRunGraceMinutes = defaultStaleRunGraceMinutes
	}
	if c.Scheduler.HeartbeatIntervalSeconds <= 0 {
		c.Scheduler.HeartbeatIntervalSeconds = defaultHeartbeatIntervalSeconds
	}
}

func (c *Config) normalizeStore() {
	c.Store.EngagementMerge = strings.ToLower(strings.TrimSpace(c.Store.EngagementMerge))
	if c.Store.EngagementMerge == "" {
		c.Store.EngagementMerge = defaultEngagementMerge
	}
	if c.Store.RetentionDays <= 0 {
		c.Store.RetentionDays = defaultRetentionDays
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
