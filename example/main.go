package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jpalmerr/votewatch"
)

func main() {
	// start mock poll source (see mock_source.go)
	go StartMockPollSource(":8081")
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	w, err := votewatch.New(
		votewatch.WithSource("http://localhost:8081/poll"),
		votewatch.WithPollingInterval(5*time.Second),
		votewatch.WithPort(3000),
		votewatch.WithTitle("Élection - démo"),
		votewatch.WithLogPath(filepath.Join(os.TempDir(), "votewatch-demo.csv")),
		votewatch.WithLogger(logger),
		votewatch.WithSnapshotCallback(func(s votewatch.Snapshot) {
			var total int64
			for _, n := range s.Votes {
				total += n
			}
			logger.Info("total votes", "timestamp", s.Timestamp, "total", total)
		}),
	)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  votewatch demo")
	fmt.Println()
	fmt.Println("  Dashboard:  http://localhost:3000")
	fmt.Println("  Events:     curl -N http://localhost:3000/events")
	fmt.Println("  Vote log:  ", w.LogPath())
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		slog.Error("votewatch error", "error", err)
		os.Exit(1)
	}
}
