// Package matching pairs thread segments with transcript spans. Candidate
// windows are prefiltered lexically, judged by a language model in batches,
// and blended with lexical coherence before the confidence floor is applied.
// Each thread segment yields at most one match.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services/scoring"
	"clipper/internal/textutil"
	"clipper/internal/thread"
	"clipper/internal/transcript"
)

// Quality tier boundaries over the blended confidence.
const (
	perfectThreshold   = 0.95
	excellentThreshold = 0.90
	goodThreshold      = 0.82
)

// Match links one thread segment to one span of one video.
type Match struct {
	SegmentID      string  `json:"segment_id"`
	SegmentOrdinal int     `json:"segment_ordinal"`
	SegmentText    string  `json:"segment_text"`
	VideoIndex     int     `json:"video_index"`
	VideoID        string  `json:"video_id"`
	VideoURL       string  `json:"video_url"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	MatchedText    string  `json:"matched_text"`
	Confidence     float64 `json:"confidence"`
	Quality        string  `json:"quality"`
	Reason         string  `json:"reason,omitempty"`
	ClipPath       string  `json:"clip_path,omitempty"`
	ClipError      string  `json:"clip_error,omitempty"`
}

// Source pairs a video reference with its acquired transcript. A nil
// Transcript marks a video whose acquisition failed; it contributes no
// candidates but does not block matching against the others.
type Source struct {
	Video      transcript.Video
	Transcript *transcript.Transcript
}

// QualityTier names the confidence band a match falls into.
func QualityTier(confidence float64) string {
	switch {
	case confidence >= perfectThreshold:
		return "perfect"
	case confidence >= excellentThreshold:
		return "excellent"
	case confidence >= goodThreshold:
		return "good"
	default:
		return "acceptable"
	}
}

// Engine runs the matching pipeline.
type Engine struct {
	scorer scoring.Scorer
	cfg    config.Matching
	logger *slog.Logger
}

// NewEngine builds a matching engine.
func NewEngine(scorer scoring.Scorer, cfg config.Matching, logger *slog.Logger) *Engine {
	return &Engine{
		scorer: scorer,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "matching"),
	}
}

type candidate struct {
	id         string
	videoIndex int
	videoID    string
	videoURL   string
	start      float64
	end        float64
	text       string
	context    string
	similarity float64
}

// Match scores every thread segment against every transcript and returns at
// most one match per segment, in segment order. Segments whose best candidate
// falls below the confidence floor are simply absent from the result.
func (e *Engine) Match(ctx context.Context, segments []thread.Segment, sources []Source) ([]Match, error) {
	usable := 0
	for _, source := range sources {
		if source.Transcript != nil && len(source.Transcript.Segments) > 0 {
			usable++
		}
	}
	if usable == 0 {
		e.logger.Warn("no transcripts available, matching skipped")
		return nil, nil
	}

	start := time.Now()
	var matches []Match
	var batches, failedBatches int
	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		match, segBatches, segFailed := e.matchSegment(ctx, segment, sources)
		batches += segBatches
		failedBatches += segFailed
		if match != nil {
			matches = append(matches, *match)
		}
	}

	if failedBatches > 0 && failedBatches == batches {
		// Scoring outages degrade the result to zero matches; the job still
		// completes and reports what it could do.
		e.logger.Warn("every scoring batch failed",
			logging.Int("batches", batches))
	}
	e.logger.Info("matching complete",
		logging.Int("segments", len(segments)),
		logging.Int("matches", len(matches)),
		logging.Int("failed_batches", failedBatches),
		logging.Duration("elapsed", time.Since(start)))
	return matches, nil
}

func (e *Engine) matchSegment(ctx context.Context, segment thread.Segment, sources []Source) (*Match, int, int) {
	candidates := e.collectCandidates(segment, sources)
	if len(candidates) == 0 {
		return nil, 0, 0
	}

	best, batches, failed := e.scoreCandidates(ctx, segment, candidates)
	if best == nil || best.blended < e.cfg.MinConfidence {
		if best != nil {
			e.logger.Debug("best candidate below confidence floor",
				logging.String("segment", segment.ID),
				logging.Float64("confidence", best.blended))
		}
		return nil, batches, failed
	}

	return &Match{
		SegmentID:      segment.ID,
		SegmentOrdinal: segment.Ordinal,
		SegmentText:    segment.Text,
		VideoIndex:     best.candidate.videoIndex,
		VideoID:        best.candidate.videoID,
		VideoURL:       best.candidate.videoURL,
		Start:          best.candidate.start,
		End:            best.candidate.end,
		MatchedText:    best.candidate.text,
		Confidence:     best.blended,
		Quality:        QualityTier(best.blended),
		Reason:         best.reason,
	}, batches, failed
}

// collectCandidates slides windows of one to WindowSize consecutive transcript
// segments over every transcript, ranks them by lexical similarity to the
// thread segment, and keeps the top MaxCandidates.
func (e *Engine) collectCandidates(segment thread.Segment, sources []Source) []candidate {
	fingerprint := textutil.NewFingerprint(segment.Text)

	var candidates []candidate
	for _, source := range sources {
		tr := source.Transcript
		if tr == nil || len(tr.Segments) == 0 {
			continue
		}
		for size := 1; size <= e.cfg.WindowSize; size++ {
			for i := 0; i+size <= len(tr.Segments); i++ {
				window := tr.Segments[i : i+size]
				text := joinSegments(window)
				if text == "" {
					continue
				}
				candidates = append(candidates, candidate{
					id:         fmt.Sprintf("v%d-s%d-n%d", source.Video.Index, i, size),
					videoIndex: source.Video.Index,
					videoID:    tr.VideoID,
					videoURL:   source.Video.URL,
					start:      window[0].Start,
					end:        window[len(window)-1].End,
					text:       text,
					context:    surroundingText(tr.Segments, i, size),
					similarity: textutil.CosineSimilarity(fingerprint, textutil.NewFingerprint(text)),
				})
			}
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].similarity != candidates[b].similarity {
			return candidates[a].similarity > candidates[b].similarity
		}
		if candidates[a].videoIndex != candidates[b].videoIndex {
			return candidates[a].videoIndex < candidates[b].videoIndex
		}
		return candidates[a].start < candidates[b].start
	})
	if len(candidates) > e.cfg.MaxCandidates {
		candidates = candidates[:e.cfg.MaxCandidates]
	}
	return candidates
}

type scored struct {
	candidate candidate
	blended   float64
	reason    string
}

// scoreCandidates runs the model over the candidates in batches and returns
// the best blended result. A failed batch forfeits only its own candidates.
func (e *Engine) scoreCandidates(ctx context.Context, segment thread.Segment, candidates []candidate) (*scored, int, int) {
	batchSize := e.cfg.ScoreBatchSize
	if batchSize < 1 {
		batchSize = len(candidates)
	}

	byID := make(map[string]candidate, len(candidates))
	for _, c := range candidates {
		byID[c.id] = c
	}

	var best *scored
	var batches, failed int
	for offset := 0; offset < len(candidates); offset += batchSize {
		end := offset + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[offset:end]
		batches++

		req := scoring.Request{SegmentText: segment.Text}
		for _, c := range batch {
			req.Candidates = append(req.Candidates, scoring.Candidate{
				ID:      c.id,
				Excerpt: c.text,
				Context: c.context,
			})
		}

		scores, err := e.scorer.ScoreBatch(ctx, req)
		if err != nil {
			failed++
			e.logger.Warn("scoring batch failed",
				logging.String("segment", segment.ID),
				logging.Int("batch_size", len(batch)),
				logging.Error(err))
			continue
		}

		for _, score := range scores {
			c, ok := byID[score.ID]
			if !ok {
				continue
			}
			blended := (1-e.cfg.CoherenceWeight)*score.Confidence + e.cfg.CoherenceWeight*c.similarity
			if better(best, c, blended) {
				best = &scored{candidate: c, blended: blended, reason: score.Reason}
			}
		}
	}
	return best, batches, failed
}

// better applies the deterministic tie-break: higher confidence wins, then
// lower video index, then earlier start.
func better(current *scored, c candidate, blended float64) bool {
	if current == nil {
		return true
	}
	if blended != current.blended {
		return blended > current.blended
	}
	if c.videoIndex != current.candidate.videoIndex {
		return c.videoIndex < current.candidate.videoIndex
	}
	return c.start < current.candidate.start
}

func joinSegments(segments []transcript.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// surroundingText returns up to one window of transcript text on each side of
// the candidate span, for the model to judge topical coherence.
func surroundingText(segments []transcript.Segment, start, size int) string {
	before := start - size
	if before < 0 {
		before = 0
	}
	after := start + 2*size
	if after > len(segments) {
		after = len(segments)
	}
	var parts []string
	if before < start {
		parts = append(parts, "before: "+joinSegments(segments[before:start]))
	}
	if start+size < after {
		parts = append(parts, "after: "+joinSegments(segments[start+size:after]))
	}
	return strings.Join(parts, "\n")
}
