package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
)

// CaptionSource pulls platform captions with yt-dlp without downloading any
// media. It prefers uploaded subtitles and falls back to auto-generated ones.
type CaptionSource struct {
	binary     string
	scratchDir string
	timeout    time.Duration
	run        commandRunner
	logger     *slog.Logger
}

// NewCaptionSource builds the caption source.
func NewCaptionSource(cfg *config.Config, logger *slog.Logger) *CaptionSource {
	return &CaptionSource{
		binary:     cfg.YtdlpBinary(),
		scratchDir: cfg.Paths.ScratchDir,
		timeout:    time.Duration(cfg.Transcript.CaptionTimeoutSeconds) * time.Second,
		run:        defaultCommandRunner,
		logger:     logging.WithComponent(logger, "captions"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *CaptionSource) WithCommandRunner(run commandRunner) {
	s.run = run
}

func (s *CaptionSource) Name() string { return "captions" }

func (s *CaptionSource) Timeout() time.Duration { return s.timeout }

// Acquire writes caption tracks into a scratch directory, parses the first
// json3 track found, and removes the scratch files before returning.
func (s *CaptionSource) Acquire(ctx context.Context, video Video) (*Transcript, error) {
	workDir, err := os.MkdirTemp(s.scratchDir, "captions-")
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "captions", "acquire", "create scratch directory", err)
	}
	defer os.RemoveAll(workDir)

	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", "en.*",
		"--sub-format", "json3",
		"--output", filepath.Join(workDir, "track"),
		video.URL,
	}
	if _, err := runYtdlp(ctx, s.run, s.binary, args); err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "captions", "acquire", "caption download failed", err)
	}

	trackPath, err := findCaptionTrack(workDir)
	if err != nil {
		return nil, err
	}
	segments, err := parseJSON3(trackPath)
	if err != nil {
		return nil, err
	}

	result := &Transcript{
		VideoID:  video.ID,
		URL:      video.URL,
		Platform: video.Platform,
		Segments: segments,
	}
	if n := len(segments); n > 0 {
		result.Duration = segments[n-1].End
	}
	return result, nil
}

func findCaptionTrack(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json3"))
	if err != nil || len(matches) == 0 {
		return "", services.Wrap(services.ErrAcquisition, "captions", "acquire", "no caption track produced", err)
	}
	// Prefer uploaded subtitles over auto-generated when both exist.
	for _, match := range matches {
		if !strings.Contains(filepath.Base(match), "auto") {
			return match, nil
		}
	}
	return matches[0], nil
}

type json3Track struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func parseJSON3(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "captions", "parse", "read caption track", err)
	}
	var track json3Track
	if err := json.Unmarshal(data, &track); err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "captions", "parse", "decode caption track", err)
	}

	type captionEvent struct {
		startMs int64
		durMs   int64
		text    string
	}
	var events []captionEvent
	for _, event := range track.Events {
		var builder strings.Builder
		for _, seg := range event.Segs {
			builder.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(strings.ReplaceAll(builder.String(), "\n", " "))
		if text == "" {
			continue
		}
		events = append(events, captionEvent{startMs: event.StartMs, durMs: event.DurationMs, text: text})
	}

	var segments []Segment
	for i, event := range events {
		endMs := event.startMs + event.durMs
		if event.durMs <= 0 {
			// Auto-generated tracks sometimes omit the duration; borrow the
			// next event's start so the segment keeps a positive length.
			if i+1 >= len(events) || events[i+1].startMs <= event.startMs {
				continue
			}
			endMs = events[i+1].startMs
		}
		segments = append(segments, Segment{
			Index: len(segments),
			Start: float64(event.startMs) / 1000,
			End:   float64(endMs) / 1000,
			Text:  event.text,
		})
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrAcquisition, "captions", "parse",
			fmt.Sprintf("caption track %s contains no text", filepath.Base(path)), nil)
	}
	return segments, nil
}
