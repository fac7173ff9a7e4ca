package config

const (
	defaultScratchDir    = "~/.local/share/clipper/scratch"
	defaultClipDir       = "~/.local/share/clipper/clips"
	defaultLogDir        = "~/.local/share/clipper/logs"
	defaultCredentialDir = "~/.local/share/clipper/credentials"
	defaultAPIBind       = "127.0.0.1:8750"

	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultSpeechModel   = "whisper-1"
	defaultScoringModel  = "gpt-4o-mini"

	defaultVideoDataHost          = "https://api.videodata.example.com"
	defaultVideoDataWindowLimit   = 10
	defaultVideoDataWindowSeconds = 60
	defaultVideoDataMinIntervalMS = 1500
	defaultVideoDataRetries       = 3

	// DefaultMinConfidence is the single quality floor below which a
	// candidate window is rejected rather than emitted as a weak match.
	DefaultMinConfidence = 0.75

	defaultMatchingWindowSize      = 3
	defaultMatchingMaxCandidates   = 8
	defaultMatchingScoreBatchSize  = 5
	defaultMatchingCoherenceWeight = 0.15

	defaultJobStore              = "memory"
	defaultJobRetentionMinutes   = 60
	defaultJobWallClockMinutes   = 30
	defaultTranscriptConcurrency = 3

	defaultCaptionTimeoutSeconds = 30
	defaultAPITimeoutSeconds     = 60
	defaultSpeechTimeoutSeconds  = 300
	defaultSpeechRetries         = 2

	defaultDownloadTimeoutSeconds = 600
	defaultCutTimeoutSeconds      = 120

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir:    defaultScratchDir,
			ClipDir:       defaultClipDir,
			LogDir:        defaultLogDir,
			CredentialDir: defaultCredentialDir,
			APIBind:       defaultAPIBind,
		},
		Services: Services{
			OpenAIBaseURL:  defaultOpenAIBaseURL,
			SpeechModel:    defaultSpeechModel,
			ScoringModel:   defaultScoringModel,
			TimeoutSeconds: 60,
		},
		VideoData: VideoData{
			Host:               defaultVideoDataHost,
			WindowLimit:        defaultVideoDataWindowLimit,
			WindowSeconds:      defaultVideoDataWindowSeconds,
			MinIntervalMS:      defaultVideoDataMinIntervalMS,
			ThrottleRetries:    defaultVideoDataRetries,
			RequestTimeoutSecs: 30,
		},
		Matching: Matching{
			MinConfidence:   DefaultMinConfidence,
			WindowSize:      defaultMatchingWindowSize,
			MaxCandidates:   defaultMatchingMaxCandidates,
			ScoreBatchSize:  defaultMatchingScoreBatchSize,
			CoherenceWeight: defaultMatchingCoherenceWeight,
		},
		Jobs: Jobs{
			Store:                 defaultJobStore,
			RetentionMinutes:      defaultJobRetentionMinutes,
			MaxWallClockMinutes:   defaultJobWallClockMinutes,
			TranscriptConcurrency: defaultTranscriptConcurrency,
		},
		Transcript: Transcript{
			CaptionTimeoutSeconds: defaultCaptionTimeoutSeconds,
			APITimeoutSeconds:     defaultAPITimeoutSeconds,
			SpeechTimeoutSeconds:  defaultSpeechTimeoutSeconds,
			SpeechRetries:         defaultSpeechRetries,
		},
		Retrieval: Retrieval{
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			CutTimeoutSeconds:      defaultCutTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
