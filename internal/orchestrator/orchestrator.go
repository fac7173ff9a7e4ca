// Package orchestrator runs submitted threads through the full pipeline:
// parse, acquire transcripts, match, and optionally retrieve clips. Input is
// validated synchronously; everything after job creation happens in the
// background under a wall-clock budget.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"clipper/internal/config"
	"clipper/internal/jobs"
	"clipper/internal/logging"
	"clipper/internal/matching"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/thread"
	"clipper/internal/transcript"
)

// Progress milestones reported through the job store.
const (
	progressParsed      = 10
	progressTranscripts = 55
	progressMatched     = 75
	progressRetrieved   = 95
)

// Acquirer resolves a transcript for one video.
type Acquirer interface {
	Acquire(ctx context.Context, video transcript.Video) (*transcript.Transcript, error)
}

// Matcher pairs thread segments with transcript spans.
type Matcher interface {
	Match(ctx context.Context, segments []thread.Segment, sources []matching.Source) ([]matching.Match, error)
}

// Retriever cuts clips for matches, reporting per-match outcomes in place.
type Retriever interface {
	Retrieve(ctx context.Context, jobID, sessionID string, matches []matching.Match) []matching.Match
}

// Request is one thread submission.
type Request struct {
	ThreadText    string   `json:"thread_text"`
	VideoURLs     []string `json:"video_urls"`
	SessionID     string   `json:"session_id,omitempty"`
	RetrieveClips bool     `json:"retrieve_clips"`
}

// Processor validates submissions and drives jobs to completion.
type Processor struct {
	store       jobs.Store
	acquirer    Acquirer
	matcher     Matcher
	retriever   Retriever
	notifier    notifications.Service
	concurrency int
	wallClock   time.Duration
	logger      *slog.Logger
}

// NewProcessor wires the pipeline together.
func NewProcessor(cfg *config.Config, store jobs.Store, acquirer Acquirer, matcher Matcher, retriever Retriever, notifier notifications.Service, logger *slog.Logger) *Processor {
	return &Processor{
		store:       store,
		acquirer:    acquirer,
		matcher:     matcher,
		retriever:   retriever,
		notifier:    notifier,
		concurrency: cfg.Jobs.TranscriptConcurrency,
		wallClock:   time.Duration(cfg.Jobs.MaxWallClockMinutes) * time.Minute,
		logger:      logging.WithComponent(logger, "orchestrator"),
	}
}

// Submit validates the request, creates a job, and starts processing in the
// background. Invalid input never creates a job.
func (p *Processor) Submit(ctx context.Context, req Request) (*jobs.Job, error) {
	segments, err := thread.Parse(req.ThreadText)
	if err != nil {
		return nil, err
	}
	if len(req.VideoURLs) == 0 {
		return nil, services.Wrap(services.ErrInput, "orchestrator", "submit", "at least one video url is required", nil)
	}
	videos := make([]transcript.Video, 0, len(req.VideoURLs))
	for i, rawURL := range req.VideoURLs {
		video, err := transcript.ParseVideoRef(i, rawURL)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	job, err := p.store.Create(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("job accepted",
		logging.String("job_id", job.ID),
		logging.Int("segments", len(segments)),
		logging.Int("videos", len(videos)))

	go p.process(job.ID, req, segments, videos)
	return job, nil
}

// Status returns the current job state, or nil when unknown or purged.
func (p *Processor) Status(ctx context.Context, jobID string) (*jobs.Job, error) {
	return p.store.Get(ctx, jobID)
}

// process runs the pipeline for one job. It owns its own context: the job
// outlives the submitting HTTP request and is bounded only by the wall clock.
func (p *Processor) process(jobID string, req Request, segments []thread.Segment, videos []transcript.Video) {
	ctx := services.WithJobID(context.Background(), jobID)
	if p.wallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.wallClock)
		defer cancel()
	}
	start := time.Now()

	p.progress(ctx, jobID, progressParsed, fmt.Sprintf("parsed %d segments", len(segments)))

	sources, transcribed := p.acquireTranscripts(ctx, jobID, videos)
	if err := ctx.Err(); err != nil {
		p.fail(ctx, jobID, err)
		return
	}
	p.progress(ctx, jobID, progressTranscripts,
		fmt.Sprintf("acquired %d/%d transcripts", transcribed, len(videos)))

	// Unusable videos and scoring outages degrade the result; the job still
	// completes and the summary carries the damage. Only input errors,
	// timeouts, and configuration errors abort a job.
	matches, err := p.matcher.Match(ctx, segments, sources)
	if err != nil {
		if ctx.Err() != nil || services.IsJobFatal(err) {
			p.fail(ctx, jobID, err)
			return
		}
		p.logger.Warn("matching degraded to zero matches",
			logging.String("job_id", jobID),
			logging.Error(err))
		matches = nil
	}
	p.progress(ctx, jobID, progressMatched, fmt.Sprintf("matched %d/%d segments", len(matches), len(segments)))

	clips, clipFailures := 0, 0
	if req.RetrieveClips && len(matches) > 0 {
		matches = p.retriever.Retrieve(ctx, jobID, req.SessionID, matches)
		for _, match := range matches {
			if match.ClipPath != "" {
				clips++
			}
			if match.ClipError != "" {
				clipFailures++
			}
		}
		p.progress(ctx, jobID, progressRetrieved, fmt.Sprintf("retrieved %d clips", clips))
	}

	avgConfidence := 0.0
	for _, match := range matches {
		avgConfidence += match.Confidence
	}
	if len(matches) > 0 {
		avgConfidence /= float64(len(matches))
	}

	result := &jobs.Result{
		Matches: matches,
		Summary: jobs.Summary{
			Segments:          len(segments),
			Videos:            len(videos),
			Transcribed:       transcribed,
			Matched:           len(matches),
			ClipsRetrieved:    clips,
			ClipFailures:      clipFailures,
			AvgConfidence:     avgConfidence,
			ProcessingSeconds: time.Since(start).Seconds(),
		},
	}
	if err := p.store.Complete(ctx, jobID, result); err != nil {
		p.logger.Error("failed to record completion",
			logging.String("job_id", jobID),
			logging.Error(err))
		return
	}
	p.logger.Info("job completed",
		logging.String("job_id", jobID),
		logging.Int("matched", len(matches)),
		logging.Int("clips", clips),
		logging.Duration("elapsed", time.Since(start)))
	if err := p.notifier.NotifyJobCompleted(ctx, jobID, len(matches), clips); err != nil {
		p.logger.Warn("completion notification failed", logging.Error(err))
	}
}

// acquireTranscripts fans out over the videos with bounded concurrency. A
// failed acquisition leaves a nil transcript in its slot; the job degrades
// instead of failing as long as at least one video produced a transcript.
func (p *Processor) acquireTranscripts(ctx context.Context, jobID string, videos []transcript.Video) ([]matching.Source, int) {
	sources := make([]matching.Source, len(videos))
	group, groupCtx := errgroup.WithContext(ctx)
	limit := p.concurrency
	if limit < 1 {
		limit = 1
	}
	group.SetLimit(limit)

	for i, video := range videos {
		i, video := i, video
		sources[i] = matching.Source{Video: video}
		group.Go(func() error {
			result, err := p.acquirer.Acquire(groupCtx, video)
			if err != nil {
				p.logger.Warn("transcript acquisition failed",
					logging.String("job_id", jobID),
					logging.String("video_id", video.ID),
					logging.Error(err))
				return nil
			}
			sources[i].Transcript = result
			return nil
		})
	}
	_ = group.Wait()

	transcribed := 0
	for _, source := range sources {
		if source.Transcript != nil {
			transcribed++
		}
	}
	return sources, transcribed
}

func (p *Processor) progress(ctx context.Context, jobID string, progress float64, message string) {
	if err := p.store.UpdateProgress(ctx, jobID, progress, message); err != nil {
		p.logger.Warn("progress update failed",
			logging.String("job_id", jobID),
			logging.Error(err))
	}
}

// fail records a terminal failure. A job whose wall-clock budget has expired
// is classified as a timeout regardless of which component tripped first. The
// bookkeeping writes run on a detached context: the expired job context must
// not keep its own failure from being recorded.
func (p *Processor) fail(ctx context.Context, jobID string, err error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, "orchestrator", "process",
			"job exceeded its wall-clock budget", err)
	}
	ctx = context.WithoutCancel(ctx)
	kind := services.Classify(err)
	p.logger.Error("job failed",
		logging.String("job_id", jobID),
		logging.String("error_kind", kind),
		logging.Error(err))
	if storeErr := p.store.Fail(ctx, jobID, kind, err.Error()); storeErr != nil {
		p.logger.Error("failed to record failure", logging.Error(storeErr))
	}
	if notifyErr := p.notifier.NotifyJobFailed(ctx, jobID, kind, err.Error()); notifyErr != nil {
		p.logger.Warn("failure notification failed", logging.Error(notifyErr))
	}
}
