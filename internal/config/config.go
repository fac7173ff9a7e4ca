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
	ScratchDir    string `toml:"scratch_dir"`
	ClipDir       string `toml:"clip_dir"`
	LogDir        string `toml:"log_dir"`
	CredentialDir string `toml:"credential_dir"`
	APIBind       string `toml:"api_bind"`
}

// Services contains connection settings for the speech-to-text and
// language-understanding APIs (OpenAI-compatible).
type Services struct {
	OpenAIAPIKey   string `toml:"openai_api_key"`
	OpenAIBaseURL  string `toml:"openai_base_url"`
	SpeechModel    string `toml:"speech_model"`
	ScoringModel   string `toml:"scoring_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// VideoData contains settings for the paid video-data provider consulted by
// the transcript API source.
type VideoData struct {
	APIKey             string `toml:"api_key"`
	Host               string `toml:"host"`
	WindowLimit        int    `toml:"window_limit"`
	WindowSeconds      int    `toml:"window_seconds"`
	MinIntervalMS      int    `toml:"min_interval_ms"`
	ThrottleRetries    int    `toml:"throttle_retries"`
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"`
}

// Matching contains the matching engine tunables.
type Matching struct {
	MinConfidence   float64 `toml:"min_confidence"`
	WindowSize      int     `toml:"window_size"`
	MaxCandidates   int     `toml:"max_candidates"`
	ScoreBatchSize  int     `toml:"score_batch_size"`
	CoherenceWeight float64 `toml:"coherence_weight"`
}

// Jobs contains job store and lifecycle settings.
type Jobs struct {
	Store                 string `toml:"store"`
	RetentionMinutes      int    `toml:"retention_minutes"`
	MaxWallClockMinutes   int    `toml:"max_wall_clock_minutes"`
	TranscriptConcurrency int    `toml:"transcript_concurrency"`
}

// Transcript contains per-source budgets for the acquisition chain.
type Transcript struct {
	CaptionTimeoutSeconds int `toml:"caption_timeout_seconds"`
	APITimeoutSeconds     int `toml:"api_timeout_seconds"`
	SpeechTimeoutSeconds  int `toml:"speech_timeout_seconds"`
	SpeechRetries         int `toml:"speech_retries"`
}

// Retrieval contains the clip download and cut settings.
type Retrieval struct {
	SharedCookieFile       string `toml:"shared_cookie_file"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
	CutTimeoutSeconds      int    `toml:"cut_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the clipper daemon.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Services: speech-to-text and scoring API connection
//   - VideoData: rate-limited video-data provider settings
//   - Matching: confidence floor and candidate window tunables
//   - Jobs: job store backend, retention, and concurrency
//   - Transcript: per-source acquisition budgets
//   - Retrieval: download/cut timeouts and shared credentials
//   - Notifications: optional ntfy push notifications
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Services      Services      `toml:"services"`
	VideoData     VideoData     `toml:"video_data"`
	Matching      Matching      `toml:"matching"`
	Jobs          Jobs          `toml:"jobs"`
	Transcript    Transcript    `toml:"transcript"`
	Retrieval     Retrieval     `toml:"retrieval"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipper.toml")
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
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.ClipDir, c.Paths.LogDir, c.Paths.CredentialDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// YtdlpBinary returns the downloader executable name.
func (c *Config) YtdlpBinary() string {
	return "yt-dlp"
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction
// and clip cutting.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
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
