// Command clipperd runs the clipper daemon: it serves the HTTP API and
// drives submitted jobs through transcript acquisition, matching, and clip
// retrieval.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clipper/internal/config"
	"clipper/internal/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config.toml")
	flag.Parse()

	// A .env beside the daemon is a convenience for development; missing is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger.Info("clipperd starting",
		logging.String("config", resolvedPath),
		logging.String("bind", cfg.Paths.APIBind))

	daemon, err := newDaemon(cfg, logger)
	if err != nil {
		logger.Error("daemon init failed", logging.Error(err))
		return
	}
	defer daemon.Close()

	server := &http.Server{
		Addr:              cfg.Paths.APIBind,
		Handler:           daemon.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", logging.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("clipperd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", logging.Error(err))
	}
}
