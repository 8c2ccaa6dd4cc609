package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cloo-solutions/kitguide/internal/api/handlers"
	"github.com/cloo-solutions/kitguide/internal/config"
	"github.com/cloo-solutions/kitguide/internal/jobs"
	"github.com/cloo-solutions/kitguide/internal/server"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the kitguide API server. Configuration errors and an unreachable embedding service stop startup.",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides KITGUIDE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, config.RequireStore|config.RequireModels, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := rt.migrate(); err != nil {
			return err
		}
	}

	embedder, err := rt.embeddingClient(ctx)
	if err != nil {
		return err
	}

	source, err := rt.pageSource(ctx, cfg.CorpusDir)
	if err != nil {
		return fmt.Errorf("failed to open corpus source: %w", err)
	}

	pipeline, err := rt.pipeline(ctx, embedder, newDetector(cfg, ""), linkerFor(source))
	if err != nil {
		return err
	}
	builder := rt.corpusBuilder(source, embedder)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var syncWorker *jobs.Worker
	if cfg.CorpusSyncInterval > 0 {
		processor := jobs.NewCorpusSyncProcessor(source, builder, rt.steps, logger)
		syncWorker = jobs.NewWorker(processor, cfg.CorpusSyncInterval, logger)
		go syncWorker.Start(workerCtx)
		logger.Info("corpus sync worker started", "interval", cfg.CorpusSyncInterval, "corpus_dir", cfg.CorpusDir)
	}

	router := server.NewRouter(server.RouterConfig{
		GuideHandler:  handlers.NewGuideHandler(pipeline, filepath.Join(cfg.OutputDir, "uploads"), cfg.ImageDir, logger),
		CorpusHandler: handlers.NewCorpusHandler(builder),
		Store:         rt.conns,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutting down...")

	if syncWorker != nil {
		cancelWorker()
		syncWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
