// Package jobs tracks asynchronous matching jobs from submission to purge.
// Two store backends exist: an in-memory store for the common single-daemon
// case and a SQLite store that survives restarts.
package jobs

import (
	"context"
	"time"

	"clipper/internal/matching"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Summary aggregates what a completed job did. AvgConfidence is zero when
// nothing matched.
type Summary struct {
	Segments          int     `json:"segments"`
	Videos            int     `json:"videos"`
	Transcribed       int     `json:"transcribed"`
	Matched           int     `json:"matched"`
	ClipsRetrieved    int     `json:"clips_retrieved"`
	ClipFailures      int     `json:"clip_failures"`
	AvgConfidence     float64 `json:"avg_confidence"`
	ProcessingSeconds float64 `json:"processing_seconds"`
}

// Result is the payload of a completed job.
type Result struct {
	Matches []matching.Match `json:"matches"`
	Summary Summary          `json:"summary"`
}

// Job is one submitted matching request and its current state. Progress runs
// 0 to 100 and never decreases.
type Job struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Result    *Result   `json:"result,omitempty"`
}

// Store persists jobs. Get returns nil without error when the job does not
// exist or has been purged.
type Store interface {
	Create(ctx context.Context) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	UpdateProgress(ctx context.Context, id string, progress float64, message string) error
	Complete(ctx context.Context, id string, result *Result) error
	Fail(ctx context.Context, id string, errorKind, message string) error
	Close() error
}
