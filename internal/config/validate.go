package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCurator(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCurator() error {
	if c.Curator.MinInterestScore < 1 || c.Curator.MinInterestScore > 10 {
		return errors.New("curator.min_interest_score must be between 1 and 10")
	}
	if c.Curator.MaxItemsPerEpisode < 1 {
		return errors.New("curator.max_items_per_episode must be >= 1")
	}
	return nil
}

func (c *Config) validateVoice() error {
	switch c.Voice.Format {
	case "mp3", "opus", "aac", "flac", "wav", "pcm":
	default:
		return fmt.Errorf("voice.format %q is not a supported audio format", c.Voice.Format)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.GenerationHourUTC < 0 || c.Scheduler.GenerationHourUTC > 23 {
		return errors.New("scheduler.generation_hour_utc must be between 0 and 23")
	}
	if err := ensurePositiveMap(map[string]int{
		"scheduler.collection_interval_minutes": c.Scheduler.CollectionIntervalMinutes,
		"scheduler.window_hours":                c.Scheduler.WindowHours,
		"scheduler.step_timeout_seconds":        c.Scheduler.StepTimeoutSeconds,
		"scheduler.stale_run_grace_minutes":     c.Scheduler.StaleRunGraceMinutes,
		"feed.post_budget":                      c.Feed.PostBudget,
		"feed.request_timeout":                  c.Feed.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Scheduler.HeartbeatIntervalSeconds <= 0 {
		return errors.New("scheduler.heartbeat_interval_seconds must be positive")
	}
	graceSeconds := c.Scheduler.StaleRunGraceMinutes * 60
	if graceSeconds <= c.Scheduler.HeartbeatIntervalSeconds {
		return errors.New("scheduler.stale_run_grace_minutes must exceed scheduler.heartbeat_interval_seconds")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.EngagementMerge {
	case EngagementOverwrite, EngagementMergeMax:
	default:
		return fmt.Errorf("store.engagement_merge must be %q or %q", EngagementOverwrite, EngagementMergeMax)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
