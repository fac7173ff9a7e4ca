package transcript

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/services/stt"
)

// SpeechSource downloads the audio track and runs speech recognition on it.
// It is the most expensive source and sits last in the chain.
type SpeechSource struct {
	binary      string
	scratchDir  string
	timeout     time.Duration
	maxAttempts int
	transcriber stt.Transcriber
	run         commandRunner
	logger      *slog.Logger
}

// NewSpeechSource builds the speech recognition source.
func NewSpeechSource(cfg *config.Config, transcriber stt.Transcriber, logger *slog.Logger) *SpeechSource {
	return &SpeechSource{
		binary:      cfg.YtdlpBinary(),
		scratchDir:  cfg.Paths.ScratchDir,
		timeout:     time.Duration(cfg.Transcript.SpeechTimeoutSeconds) * time.Second,
		maxAttempts: cfg.Transcript.SpeechRetries,
		transcriber: transcriber,
		run:         defaultCommandRunner,
		logger:      logging.WithComponent(logger, "speech"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *SpeechSource) WithCommandRunner(run commandRunner) {
	s.run = run
}

func (s *SpeechSource) Name() string { return "speech" }

func (s *SpeechSource) Timeout() time.Duration { return s.timeout }

// Acquire downloads the audio, transcribes it, and always removes the scratch
// audio afterwards.
func (s *SpeechSource) Acquire(ctx context.Context, video Video) (*Transcript, error) {
	workDir, err := os.MkdirTemp(s.scratchDir, "speech-")
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "speech", "acquire", "create scratch directory", err)
	}
	defer os.RemoveAll(workDir)

	audioPath, err := s.downloadAudio(ctx, video, workDir)
	if err != nil {
		return nil, err
	}

	var result *stt.Result
	attempts := s.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = s.transcriber.Transcribe(ctx, audioPath)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("speech recognition attempt failed",
			logging.String("video_id", video.ID),
			logging.Int("attempt", attempt),
			logging.Error(err))
	}
	if err != nil {
		return nil, err
	}

	transcript := &Transcript{
		VideoID:  video.ID,
		URL:      video.URL,
		Platform: video.Platform,
		Duration: result.Duration,
		Segments: make([]Segment, 0, len(result.Segments)),
	}
	for i, seg := range result.Segments {
		transcript.Segments = append(transcript.Segments, Segment{
			Index: i,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return transcript, nil
}

func (s *SpeechSource) downloadAudio(ctx context.Context, video Video, workDir string) (string, error) {
	outputTemplate := filepath.Join(workDir, "audio.%(ext)s")
	args := []string{
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "5",
		"--output", outputTemplate,
		video.URL,
	}
	if _, err := runYtdlp(ctx, s.run, s.binary, args); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "speech", "download", "audio download failed", err)
	}

	matches, err := filepath.Glob(filepath.Join(workDir, "audio.*"))
	if err != nil || len(matches) == 0 {
		return "", services.Wrap(services.ErrAcquisition, "speech", "download", "no audio file produced", err)
	}
	return matches[0], nil
}
