package config

const (
	defaultDataDir   = "~/.local/share/feedcast"
	defaultOutputDir = "~/.local/share/feedcast/episodes"
	defaultLogDir    = "~/.local/share/feedcast/logs"
	defaultAPIBind   = "127.0.0.1:7842"

	defaultFeedBaseURL        = "https://syndication.twitter.com"
	defaultFeedPostBudget     = 200
	defaultFeedRequestTimeout = 30

	defaultCuratorBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultCuratorModel              = "google/gemini-3-flash-preview"
	defaultCuratorReferer            = "https://github.com/feedcast/feedcast"
	defaultCuratorTitle              = "Feedcast Curator"
	defaultCuratorTimeoutSeconds     = 120
	defaultCuratorMinInterestScore   = 6.0
	defaultCuratorMaxItemsPerEpisode = 10

	defaultVoiceBaseURL        = "https://api.openai.com/v1"
	defaultVoiceModel          = "gpt-4o-mini-tts"
	defaultVoiceFormat         = "mp3"
	defaultVoiceHostA          = "alloy"
	defaultVoiceHostB          = "onyx"
	defaultVoiceTimeoutSeconds = 300

	defaultPodcastTitle = "Feedcast Daily"
	defaultPodcastHostA = "Alex"
	defaultPodcastHostB = "Jordan"

	defaultCollectionIntervalMinutes = 60
	defaultGenerationHourUTC         = 6
	defaultWindowHours               = 24
	defaultStepTimeoutSeconds        = 300
	defaultStaleRunGraceMinutes      = 30
	defaultHeartbeatIntervalSeconds  = 15

	defaultEngagementMerge = EngagementOverwrite
	defaultRetentionDays   = 90

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Engagement merge modes for re-observed items.
const (
	EngagementOverwrite = "overwrite"
	EngagementMergeMax  = "merge-max"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Feed: Feed{
			BaseURL:        defaultFeedBaseURL,
			PostBudget:     defaultFeedPostBudget,
			RequestTimeout: defaultFeedRequestTimeout,
		},
		Curator: Curator{
			BaseURL:            defaultCuratorBaseURL,
			Model:              defaultCuratorModel,
			Referer:            defaultCuratorReferer,
			Title:              defaultCuratorTitle,
			TimeoutSeconds:     defaultCuratorTimeoutSeconds,
			MinInterestScore:   defaultCuratorMinInterestScore,
			MaxItemsPerEpisode: defaultCuratorMaxItemsPerEpisode,
		},
		Voice: Voice{
			BaseURL:        defaultVoiceBaseURL,
			Model:          defaultVoiceModel,
			Format:         defaultVoiceFormat,
			HostAVoice:     defaultVoiceHostA,
			HostBVoice:     defaultVoiceHostB,
			TimeoutSeconds: defaultVoiceTimeoutSeconds,
		},
		Podcast: Podcast{
			Title: defaultPodcastTitle,
			HostA: defaultPodcastHostA,
			HostB: defaultPodcastHostB,
		},
		Scheduler: Scheduler{
			CollectionIntervalMinutes: defaultCollectionIntervalMinutes,
			GenerationHourUTC:         defaultGenerationHourUTC,
			WindowHours:               defaultWindowHours,
			StepTimeoutSeconds:        defaultStepTimeoutSeconds,
			StaleRunGraceMinutes:      defaultStaleRunGraceMinutes,
			HeartbeatIntervalSeconds:  defaultHeartbeatIntervalSeconds,
		},
		Store: Store{
			EngagementMerge: defaultEngagementMerge,
			RetentionDays:   defaultRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
