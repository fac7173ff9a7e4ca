package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipper/internal/logging"
	"clipper/internal/matching"
	"clipper/internal/services"
)

// MemoryStore keeps jobs in process memory. Each job carries one purge timer
// that is rescheduled on every update, so a busy job is retained for the full
// window after its last change rather than its creation.
type MemoryStore struct {
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	jobs   map[string]*Job
	timers map[string]*time.Timer
	closed bool
}

// NewMemoryStore builds an in-memory job store with the given retention.
func NewMemoryStore(retention time.Duration, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		retention: retention,
		logger:    logging.WithComponent(logger, "jobs"),
		now:       time.Now,
		jobs:      make(map[string]*Job),
		timers:    make(map[string]*time.Timer),
	}
}

// Create registers a new processing job.
func (s *MemoryStore) Create(_ context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "create", "store is closed", nil)
	}

	now := s.now().UTC()
	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusProcessing,
		Message:   "accepted",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job
	s.schedulePurgeLocked(job.ID)
	return cloneJob(job), nil
}

// Get returns a copy of the job, or nil when unknown.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job), nil
}

// UpdateProgress advances the job. Progress is reconciled with max so
// out-of-order updates from concurrent stages can never move it backwards.
func (s *MemoryStore) UpdateProgress(_ context.Context, id string, progress float64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return services.Wrap(services.ErrNotFound, "jobs", "update", "job not found", nil)
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if message != "" {
		job.Message = message
	}
	job.UpdatedAt = s.now().UTC()
	s.schedulePurgeLocked(id)
	return nil
}

// Complete marks the job finished and stores its result.
func (s *MemoryStore) Complete(_ context.Context, id string, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return services.Wrap(services.ErrNotFound, "jobs", "complete", "job not found", nil)
	}
	job.Status = StatusCompleted
	job.Progress = 100
	job.Message = "completed"
	job.Result = result
	job.UpdatedAt = s.now().UTC()
	s.schedulePurgeLocked(id)
	return nil
}

// Fail marks the job failed with a classified error.
func (s *MemoryStore) Fail(_ context.Context, id string, errorKind, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return services.Wrap(services.ErrNotFound, "jobs", "fail", "job not found", nil)
	}
	job.Status = StatusFailed
	job.Message = "failed"
	job.Error = message
	job.ErrorKind = errorKind
	job.UpdatedAt = s.now().UTC()
	s.schedulePurgeLocked(id)
	return nil
}

// Close stops all purge timers.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	return nil
}

// schedulePurgeLocked resets the job's purge timer. The previous timer is
// stopped first so updates reschedule a single timer instead of stacking one
// per update.
func (s *MemoryStore) schedulePurgeLocked(id string) {
	if s.retention <= 0 {
		return
	}
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	s.timers[id] = time.AfterFunc(s.retention, func() {
		s.purge(id)
	})
}

func (s *MemoryStore) purge(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	delete(s.timers, id)
	s.logger.Debug("job purged", logging.String("job_id", id))
}

func cloneJob(job *Job) *Job {
	copied := *job
	if job.Result != nil {
		result := *job.Result
		result.Matches = append([]matching.Match(nil), job.Result.Matches...)
		copied.Result = &result
	}
	return &copied
}
