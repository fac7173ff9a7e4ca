package transcript

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/videodata"
)

// Caller issues rate-limited requests against the video-data provider.
type Caller interface {
	Call(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// APISource fetches provider-hosted transcripts through the shared
// rate-limited client. Only YouTube videos are covered by the provider.
type APISource struct {
	client  Caller
	timeout time.Duration
	logger  *slog.Logger
}

// NewAPISource builds the provider transcript source.
func NewAPISource(client Caller, cfg config.Transcript, logger *slog.Logger) *APISource {
	return &APISource{
		client:  client,
		timeout: time.Duration(cfg.APITimeoutSeconds) * time.Second,
		logger:  logging.WithComponent(logger, "transcript-api"),
	}
}

func (s *APISource) Name() string { return "provider-api" }

func (s *APISource) Timeout() time.Duration { return s.timeout }

type providerTranscript struct {
	VideoID  string  `json:"video_id"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Acquire requests the provider transcript for the video.
func (s *APISource) Acquire(ctx context.Context, video Video) (*Transcript, error) {
	if video.Platform != "youtube" {
		return nil, services.Wrap(services.ErrAcquisition, "transcript-api", "acquire",
			"provider only indexes youtube videos", nil)
	}

	body, err := s.client.Call(ctx, "transcripts", url.Values{"video_id": {video.ID}})
	if err != nil {
		return nil, err
	}

	var payload providerTranscript
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "transcript-api", "acquire", "decode provider response", err)
	}

	result := &Transcript{
		VideoID:  video.ID,
		URL:      video.URL,
		Platform: video.Platform,
		Duration: payload.Duration,
		Segments: make([]Segment, 0, len(payload.Segments)),
	}
	for i, seg := range payload.Segments {
		result.Segments = append(result.Segments, Segment{
			Index: i,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return result, nil
}

var _ Caller = (*videodata.Client)(nil)
