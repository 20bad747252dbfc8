// Package main implements the shelfd document ingestion and retrieval
// service.
//
// Configuration comes from environment variables; see internal/config.
//
// Usage:
//
//	# Start the server with defaults
//	shelfd serve
//
//	# Configure via environment
//	PORT=9090 STORE_TYPE=pgvector STORE_PGVECTOR_URL=... shelfd serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/config"
	"github.com/fyrsmithlabs/shelfd/internal/embeddings"
	"github.com/fyrsmithlabs/shelfd/internal/filestore"
	"github.com/fyrsmithlabs/shelfd/internal/formats"
	shelfdhttp "github.com/fyrsmithlabs/shelfd/internal/http"
	"github.com/fyrsmithlabs/shelfd/internal/isolation"
	"github.com/fyrsmithlabs/shelfd/internal/logging"
	"github.com/fyrsmithlabs/shelfd/internal/metrics"
	"github.com/fyrsmithlabs/shelfd/internal/store"
	"github.com/fyrsmithlabs/shelfd/internal/vectorstore"
)

// Version information (set via ldflags during build).
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "shelfd",
	Short:   "Document ingestion and retrieval service",
	Version: version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

// workerCmd is spawned by the isolation runner; one JSON job on stdin,
// one JSON result on stdout. Not part of the public CLI.
var workerCmd = &cobra.Command{
	Use:    isolation.WorkerCommand,
	Hidden: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return isolation.RunWorker(cmd.Context(), formats.DefaultRegistry(), os.Stdin, os.Stdout)
	},
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting shelfd",
		zap.String("version", version),
		zap.String("store_type", cfg.StoreType),
		zap.String("file_store_type", cfg.FileStoreType),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	embedder, err := embeddings.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	stores, err := vectorstore.NewProvider(ctx, cfg, embedder, logger)
	if err != nil {
		return fmt.Errorf("failed to connect vector store: %w", err)
	}
	defer func() { _ = stores.Close() }()

	files, err := filestore.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect file store: %w", err)
	}

	service := store.NewService(
		cfg,
		formats.DefaultRegistry(),
		isolation.NewRunner(cfg.FilesizeThreshold, logger),
		stores,
		files,
		logger,
	)

	server, err := shelfdhttp.NewServer(service, logger, &shelfdhttp.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	var metricsSrv *metrics.Server
	if cfg.MetricsPort > 0 {
		metricsSrv = metrics.NewServer(cfg.MetricsPort, logger)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown failed", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
