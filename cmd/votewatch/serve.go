package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jpalmerr/votewatch"
	"github.com/jpalmerr/votewatch/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates the CLI logger from the log section of the config.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}
	if strings.EqualFold(lc.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig resolves the YAML file (optional) and environment overrides.
func loadConfig(path string) (*config.Config, error) {
	return config.Resolve(afero.NewOsFs(), path)
}

// serveCmd starts polling and the dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling and serving the dashboard",
	Long: `Start votewatch.

The server will:
  - Load configuration from the YAML file (if given) and the environment
  - Create the CSV vote log with its header if it does not exist
  - Poll the source, then pause for poll_interval, forever
  - Serve the dashboard, /events, /ws, /reset-memory, /api/history,
    /healthz and /metrics on the configured port

A .env file in the working directory is loaded first when present.
The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Environment overrides:
  PORT                    HTTP port
  VOTEWATCH_SOURCE_URL    poll source URL
  VOTEWATCH_ARCHIVE_PATH  vote log path
  VOTEWATCH_LOG_LEVEL     debug, info, warn, error
  VOTEWATCH_LOG_FORMAT    json, text

Example:
  votewatch serve -c config.yaml
  VOTEWATCH_SOURCE_URL=https://polls.example.com/api/polls/42 votewatch serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err == nil {
		slog.Debug(".env file loaded")
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.Log)
	logger.Info("config loaded",
		"source", cfg.Source.URL,
		"candidates", len(cfg.Slate),
		"archive", cfg.Archive.Path,
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	w, err := votewatch.New(config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
