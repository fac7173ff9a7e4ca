package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"clipper/internal/logging"
	"clipper/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// janitorInterval is how often the SQLite store sweeps expired jobs. The
// in-memory store uses per-job timers instead; a periodic sweep is the better
// fit for a database.
const janitorInterval = time.Minute

// SQLiteStore persists jobs in a SQLite database so they survive daemon
// restarts. Expired jobs are removed by a background janitor.
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
	logger    *slog.Logger
	stop      chan struct{}
	done      chan struct{}
}

// OpenSQLite opens or creates the job database and starts the janitor.
func OpenSQLite(dbPath string, retention time.Duration, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	store := &SQLiteStore{
		db:        db,
		retention: retention,
		logger:    logging.WithComponent(logger, "jobs"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go store.janitor()
	return store, nil
}

// Create registers a new processing job.
func (s *SQLiteStore) Create(ctx context.Context) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusProcessing,
		Message:   "accepted",
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, progress, message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Status, job.Progress, job.Message,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Get returns the job, or nil when unknown.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, progress, message, error, error_kind, result, created_at, updated_at
         FROM jobs WHERE id = ?`, id)

	var job Job
	var errMsg, errKind, result sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&job.ID, &job.Status, &job.Progress, &job.Message,
		&errMsg, &errKind, &result, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.Error = errMsg.String
	job.ErrorKind = errKind.String
	if result.Valid && result.String != "" {
		var decoded Result
		if err := json.Unmarshal([]byte(result.String), &decoded); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &decoded
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}

// UpdateProgress advances the job without ever moving progress backwards.
func (s *SQLiteStore) UpdateProgress(ctx context.Context, id string, progress float64, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
         SET progress = MAX(progress, ?),
             message = CASE WHEN ? != '' THEN ? ELSE message END,
             updated_at = ?
         WHERE id = ?`,
		progress, message, message, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return s.requireRow(res, "update")
}

// Complete marks the job finished and stores its result.
func (s *SQLiteStore) Complete(ctx context.Context, id string, result *Result) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
         SET status = ?, progress = 100, message = 'completed', result = ?, updated_at = ?
         WHERE id = ?`,
		StatusCompleted, string(encoded), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return s.requireRow(res, "complete")
}

// Fail marks the job failed with a classified error.
func (s *SQLiteStore) Fail(ctx context.Context, id string, errorKind, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
         SET status = ?, message = 'failed', error = ?, error_kind = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed, message, errorKind, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return s.requireRow(res, "fail")
}

// Close stops the janitor and closes the database.
func (s *SQLiteStore) Close() error {
	close(s.stop)
	<-s.done
	return s.db.Close()
}

func (s *SQLiteStore) requireRow(res sql.Result, operation string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "jobs", operation, "job not found", nil)
	}
	return nil
}

func (s *SQLiteStore) janitor() {
	defer close(s.done)
	if s.retention <= 0 {
		<-s.stop
		return
	}
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes jobs whose last update is older than the retention window.
func (s *SQLiteStore) sweep() {
	cutoff := time.Now().UTC().Add(-s.retention).Format(time.RFC3339Nano)
	res, err := s.db.Exec(`DELETE FROM jobs WHERE updated_at < ?`, cutoff)
	if err != nil {
		s.logger.Warn("job sweep failed", logging.Error(err))
		return
	}
	if removed, err := res.RowsAffected(); err == nil && removed > 0 {
		s.logger.Debug("expired jobs purged", logging.Int("count", int(removed)))
	}
}
