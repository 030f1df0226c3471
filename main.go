package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apexf1/pitwall/internal/api"
	"github.com/apexf1/pitwall/internal/collector"
	"github.com/apexf1/pitwall/internal/config"
	"github.com/apexf1/pitwall/internal/openf1"
	"github.com/apexf1/pitwall/internal/replay"
	"github.com/apexf1/pitwall/internal/storage/sqlite"
	"github.com/apexf1/pitwall/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Service failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	store, err := sqlite.New(cfg.Storage.Path, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	trainingStorage := sqlite.NewTrainingStorage(store.DB(), log)
	telemetryStorage := sqlite.NewTelemetryStorage(store.DB(), log)
	sessionStorage := sqlite.NewSessionStorage(store.DB(), log)

	client := openf1.NewClient(cfg.OpenF1, log)
	collectorService := collector.NewService(
		client,
		store,
		trainingStorage,
		telemetryStorage,
		sessionStorage,
		cfg.Collector,
		log,
	)
	aligner := replay.NewAligner(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Collector.UpdateOnStart {
		go func() {
			if collectorService.UpdateRecentSessions(ctx) {
				log.Info("Startup session update complete")
			} else {
				log.Warn("Startup session update finished with errors")
			}
		}()
	}

	router := api.NewRouter(collectorService, aligner, cfg, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
