package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipper/internal/logging"
	"clipper/internal/services"
)

// Source is one transcript acquisition method. Timeout bounds a single
// acquisition attempt for one video.
type Source interface {
	Name() string
	Timeout() time.Duration
	Acquire(ctx context.Context, video Video) (*Transcript, error)
}

// Chain tries sources in registration order and returns the first transcript.
// Every source failure is logged and carried into the terminal error so a
// fully failed video explains all attempts.
type Chain struct {
	sources []Source
	logger  *slog.Logger
}

// NewChain builds an acquisition chain over the given sources.
func NewChain(logger *slog.Logger, sources ...Source) *Chain {
	return &Chain{
		sources: sources,
		logger:  logging.WithComponent(logger, "transcript"),
	}
}

// Acquire resolves a transcript for the video, trying each source in order.
// The returned transcript records which method produced it.
func (c *Chain) Acquire(ctx context.Context, video Video) (*Transcript, error) {
	if len(c.sources) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "transcript", "acquire", "no transcript sources configured", nil)
	}

	var failures []string
	var lastErr error
	for _, source := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptCtx := ctx
		cancel := func() {}
		if timeout := source.Timeout(); timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		start := time.Now()
		result, err := source.Acquire(attemptCtx, video)
		cancel()

		if err == nil && result != nil && len(result.Segments) > 0 {
			result.Method = source.Name()
			c.logger.Info("transcript acquired",
				logging.String("video_id", video.ID),
				logging.String("method", source.Name()),
				logging.Int("segments", len(result.Segments)),
				logging.Duration("elapsed", time.Since(start)))
			return result, nil
		}
		if err == nil {
			err = errors.New("source returned no segments")
		}
		lastErr = err
		failures = append(failures, fmt.Sprintf("%s: %v", source.Name(), err))
		c.logger.Warn("transcript source failed",
			logging.String("video_id", video.ID),
			logging.String("method", source.Name()),
			logging.Error(err))
	}

	return nil, services.Wrap(services.ErrAcquisition, "transcript", "acquire",
		fmt.Sprintf("all sources failed for video %s: %s", video.ID, strings.Join(failures, "; ")), lastErr)
}
