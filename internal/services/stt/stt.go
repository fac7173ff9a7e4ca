// Package stt transcribes audio files through the OpenAI speech-to-text API
// and returns timestamped segments.
package stt

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
)

// Segment is one timestamped span of recognized speech.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Result is a completed transcription.
type Result struct {
	Segments []Segment
	Duration float64
	Language string
}

// Transcriber converts an audio file into timestamped text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

type transcriptionAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Client calls the hosted speech model.
type Client struct {
	api    transcriptionAPI
	model  string
	logger *slog.Logger
}

// NewClient builds a speech client from service configuration.
func NewClient(cfg config.Services, logger *slog.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return &Client{
		api:    openai.NewClientWithConfig(clientCfg),
		model:  cfg.SpeechModel,
		logger: logging.WithComponent(logger, "stt"),
	}
}

// NewClientWithAPI injects the API implementation (used in tests).
func NewClientWithAPI(api transcriptionAPI, model string, logger *slog.Logger) *Client {
	return &Client{api: api, model: model, logger: logging.WithComponent(logger, "stt")}
}

// Transcribe sends the audio file to the speech model and returns timestamped
// segments. The verbose response format is required for per-segment timing.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "stt", "transcribe", "audio file unavailable", err)
	}

	start := time.Now()
	c.logger.Info("transcribing audio",
		logging.String("path", audioPath),
		logging.Int("size_bytes", int(info.Size())))

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "stt", "transcribe", "speech model request failed", err)
	}

	result := &Result{
		Segments: make([]Segment, 0, len(resp.Segments)),
		Duration: resp.Duration,
		Language: resp.Language,
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	c.logger.Info("transcription complete",
		logging.Int("segments", len(result.Segments)),
		logging.Duration("elapsed", time.Since(start)))
	return result, nil
}
