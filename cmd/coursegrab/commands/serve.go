package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iconidentify/coursegrab/internal/api"
	"github.com/iconidentify/coursegrab/internal/api/handler"
	"github.com/iconidentify/coursegrab/internal/config"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the JSON API for launching course runs.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr, logLevel, true)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.BasePath, 0755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	svc := newCourseService(cfg, logger)
	router := api.NewRouter(
		handler.NewRunHandler(svc, logger),
		handler.NewHealthHandler(svc, cfg.Storage.BasePath),
		cfg.Server.APIKey,
		logger,
	)

	// In-flight runs are canceled with ctx and answer with a partial summary.
	ctx := cmd.Context()
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr, "auth", cfg.Server.APIKey != "")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
