package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/credentials"
	"clipper/internal/deps"
	"clipper/internal/jobs"
	"clipper/internal/logging"
	"clipper/internal/matching"
	"clipper/internal/notifications"
	"clipper/internal/orchestrator"
	"clipper/internal/retrieval"
	"clipper/internal/services/scoring"
	"clipper/internal/services/stt"
	"clipper/internal/transcript"
	"clipper/internal/videodata"
)

// daemon holds the wired pipeline and the resources that need closing.
type daemon struct {
	cfg    *config.Config
	router *api.Router
	store  jobs.Store
	vdata  *videodata.Client
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	warnMissingTools(cfg, logger)

	store, err := openJobStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	creds, err := credentials.NewStore(cfg.Paths.CredentialDir, cfg.Retrieval.SharedCookieFile, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	vdata := videodata.NewClient(cfg.VideoData, logger)
	chain := transcript.NewChain(logger,
		transcript.NewCaptionSource(cfg, logger),
		transcript.NewAPISource(vdata, cfg.Transcript, logger),
		transcript.NewSpeechSource(cfg, stt.NewClient(cfg.Services, logger), logger),
	)

	engine := matching.NewEngine(scoring.NewClient(cfg.Services, logger), cfg.Matching, logger)
	pipeline := retrieval.NewPipeline(cfg, creds, logger)
	notifier := notifications.NewService(cfg)
	processor := orchestrator.NewProcessor(cfg, store, chain, engine, pipeline, notifier, logger)

	d := &daemon{cfg: cfg, store: store, vdata: vdata}
	d.router = api.NewRouter(processor, pipeline, creds, d, logger)
	return d, nil
}

// Health reports daemon internals for the health endpoint.
func (d *daemon) Health(_ context.Context) map[string]any {
	return map[string]any{
		"job_store":                    d.cfg.Jobs.Store,
		"notifications_enabled":        d.cfg.Notifications.NtfyTopic != "",
		"videodata_requests_in_window": d.vdata.InWindow(),
	}
}

func (d *daemon) Close() {
	if err := d.store.Close(); err != nil {
		// Shutdown path: nothing to do beyond reporting.
		fmt.Printf("close job store: %v\n", err)
	}
}

func openJobStore(cfg *config.Config, logger *slog.Logger) (jobs.Store, error) {
	retention := time.Duration(cfg.Jobs.RetentionMinutes) * time.Minute
	switch cfg.Jobs.Store {
	case "sqlite":
		return jobs.OpenSQLite(filepath.Join(cfg.Paths.LogDir, "jobs.db"), retention, logger)
	default:
		return jobs.NewMemoryStore(retention, logger), nil
	}
}

func warnMissingTools(cfg *config.Config, logger *slog.Logger) {
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		if !status.Available {
			logger.Warn("external tool unavailable",
				logging.String("tool", status.Name),
				logging.String("detail", status.Detail))
		}
	}
}
