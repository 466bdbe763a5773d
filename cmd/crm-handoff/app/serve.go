package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apphive/crm-handoff/internal/api"
	"github.com/apphive/crm-handoff/internal/queue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the handoff API server",
	Long: `Start the handoff API server and the background retry worker.

The server requires a configuration file (--config) that specifies:
- The CRM integration (base URL, OAuth client, credentials)
- Export defaults (owner, statuses, fallback entities)
- The state backend (in-memory or PostgreSQL)`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	// Exports fan out to many CRM calls; write timeout must cover a full run.
	serverWriteTimeout = 120 * time.Second
	serverIdleTimeout  = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	logger := slog.Default()

	d, err := buildDeps(ctx, viper.GetString("config"), logger)
	if err != nil {
		return err
	}
	defer d.close()

	address := viper.GetString("address")
	if address == "" {
		address = d.cfg.GetAddress()
	}

	logger.Info("Starting handoff server",
		"address", address,
		"integration", d.cfg.Integration.Name,
		"storage", d.cfg.GetStorageType())

	// Background retry worker drains the deferred file upload queue.
	worker := queue.NewWorker(d.store, d.orchestrator, queue.WithLogger(logger))
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(workerCtx); err != nil {
			logger.Error("Retry worker stopped", "error", err)
		}
	}()

	router := api.NewServer(d.orchestrator, d.tokens,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware(logger),
		),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	stopWorker()
	<-workerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}
