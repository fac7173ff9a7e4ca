package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. A failure here is a startup
// configuration error; the daemon must not accept requests with an invalid
// config.
func (c *Config) Validate() error {
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateVideoData(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateTranscript(); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServices() error {
	if strings.TrimSpace(c.Services.OpenAIAPIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipper/config.toml"
		}
		return fmt.Errorf("services.openai_api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'clipper config init')", defaultPath)
	}
	if strings.TrimSpace(c.Services.SpeechModel) == "" {
		return errors.New("services.speech_model must be set")
	}
	if strings.TrimSpace(c.Services.ScoringModel) == "" {
		return errors.New("services.scoring_model must be set")
	}
	if c.Services.TimeoutSeconds <= 0 {
		return errors.New("services.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateVideoData() error {
	if strings.TrimSpace(c.VideoData.APIKey) == "" {
		return errors.New("video_data.api_key is required. Set VIDEO_DATA_API_KEY env var or edit the config file")
	}
	if err := ensurePositiveMap(map[string]int{
		"video_data.window_limit":            c.VideoData.WindowLimit,
		"video_data.window_seconds":          c.VideoData.WindowSeconds,
		"video_data.min_interval_ms":         c.VideoData.MinIntervalMS,
		"video_data.request_timeout_seconds": c.VideoData.RequestTimeoutSecs,
	}); err != nil {
		return err
	}
	if c.VideoData.ThrottleRetries < 1 {
		return errors.New("video_data.throttle_retries must be >= 1")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		return errors.New("matching.min_confidence must be between 0 and 1")
	}
	if c.Matching.CoherenceWeight < 0 || c.Matching.CoherenceWeight > 1 {
		return errors.New("matching.coherence_weight must be between 0 and 1")
	}
	return ensurePositiveMap(map[string]int{
		"matching.window_size":      c.Matching.WindowSize,
		"matching.max_candidates":   c.Matching.MaxCandidates,
		"matching.score_batch_size": c.Matching.ScoreBatchSize,
	})
}

func (c *Config) validateJobs() error {
	switch c.Jobs.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("jobs.store must be \"memory\" or \"sqlite\", got %q", c.Jobs.Store)
	}
	return ensurePositiveMap(map[string]int{
		"jobs.retention_minutes":      c.Jobs.RetentionMinutes,
		"jobs.max_wall_clock_minutes": c.Jobs.MaxWallClockMinutes,
		"jobs.transcript_concurrency": c.Jobs.TranscriptConcurrency,
	})
}

func (c *Config) validateTranscript() error {
	if c.Transcript.SpeechRetries < 1 {
		return errors.New("transcript.speech_retries must be >= 1")
	}
	return ensurePositiveMap(map[string]int{
		"transcript.caption_timeout_seconds": c.Transcript.CaptionTimeoutSeconds,
		"transcript.api_timeout_seconds":     c.Transcript.APITimeoutSeconds,
		"transcript.speech_timeout_seconds":  c.Transcript.SpeechTimeoutSeconds,
	})
}

func (c *Config) validateRetrieval() error {
	return ensurePositiveMap(map[string]int{
		"retrieval.download_timeout_seconds": c.Retrieval.DownloadTimeoutSeconds,
		"retrieval.cut_timeout_seconds":      c.Retrieval.CutTimeoutSeconds,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
