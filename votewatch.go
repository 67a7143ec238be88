package votewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/votewatch/dashboard"
	"github.com/jpalmerr/votewatch/internal/archive"
	"github.com/jpalmerr/votewatch/internal/broadcast"
	"github.com/jpalmerr/votewatch/internal/metrics"
	"github.com/jpalmerr/votewatch/internal/poller"
	"github.com/jpalmerr/votewatch/internal/server"
	"github.com/jpalmerr/votewatch/internal/store"
	"github.com/spf13/afero"
)

const (
	defaultPollingInterval = 30 * time.Second
	defaultFetchTimeout    = 10 * time.Second
	defaultPort            = 3000
	defaultLogPath         = "votes.csv"
)

// Snapshot is one recorded observation of candidate vote counts, as passed
// to callbacks registered with [WithSnapshotCallback].
type Snapshot struct {
	// Timestamp is the fetch time in UTC, e.g. "2025-11-13T18:04:05.123Z".
	Timestamp string `json:"timestamp"`

	// Votes maps a candidate name to its count. It may omit slate candidates
	// and may contain names outside the slate.
	Votes map[string]int64 `json:"votes"`
}

// Watcher is the main orchestrator for poll source polling, snapshot
// recording, and dashboard serving.
//
// Watcher periodically fetches the poll source, normalizes the response into
// a [Snapshot], keeps the most recent snapshots in memory, appends each one
// to a durable CSV vote log, and pushes it to every connected observer. It is
// created using [New] with functional options and started with
// [Watcher.Start].
//
// The typical lifecycle is:
//
//	w, err := votewatch.New(votewatch.WithSource(src))
//	if err != nil {
//	    slog.Error("failed to create watcher", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	w.Start(ctx) // blocks until context cancelled
type Watcher struct {
	title             string
	source            poller.Source
	pollingInterval   time.Duration
	port              int
	slate             Slate
	historyCapacity   int
	logPath           string
	syncWrites        bool
	fs                afero.Fs
	extractor         VoteExtractor
	logger            *slog.Logger
	snapshotCallbacks []func(Snapshot)
}

// New creates a new [Watcher] instance with the given options.
//
// A poll source must be configured via [WithSource]. Other options have
// sensible defaults:
//   - Polling interval: 30 seconds
//   - Fetch timeout: 10 seconds
//   - Port: 3000
//   - Slate: [DefaultSlate]
//   - History capacity: 2000 snapshots
//   - Vote log: "votes.csv" on the OS filesystem
//
// Returns an error if no source is configured or if any option is invalid.
func New(opts ...Option) (*Watcher, error) {
	cfg := &wConfig{
		fetchTimeout:    defaultFetchTimeout,
		pollingInterval: defaultPollingInterval,
		port:            defaultPort,
		slate:           DefaultSlate,
		historyCapacity: store.DefaultCapacity,
		logPath:         defaultLogPath,
		extractor:       ChoicesExtractor,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.sourceURL == "" {
		return nil, errors.New("a poll source is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	fs := cfg.fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Watcher{
		title: cfg.title,
		source: poller.Source{
			URL:     cfg.sourceURL,
			Headers: copyMap(cfg.headers),
			Timeout: cfg.fetchTimeout,
		},
		pollingInterval:   cfg.pollingInterval,
		port:              cfg.port,
		slate:             cfg.slate,
		historyCapacity:   cfg.historyCapacity,
		logPath:           cfg.logPath,
		syncWrites:        cfg.syncWrites,
		fs:                fs,
		extractor:         cfg.extractor,
		logger:            logger,
		snapshotCallbacks: cfg.snapshotCallbacks,
	}, nil
}

// Start begins polling the source and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The vote log is created with its header row if missing
//   - The HTTP server starts on the configured port
//   - The source is polled immediately, then again after each pause
//   - Every non-empty snapshot is buffered, broadcast, and appended to the log
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start. A vote log that cannot be created is logged and retried on every
// append; it does not stop the Watcher.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("votewatch starting",
		"source", w.source.URL,
		"candidates", len(w.slate),
		"log_path", w.logPath,
	)
	w.logger.Info("polling configured", "interval", w.pollingInterval.String())

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	writer := archive.NewWriter(w.fs, w.logPath, w.slate.Names(), archive.WithSync(w.syncWrites))
	if created, err := writer.EnsureInitialized(); err != nil {
		w.logger.Error("failed to initialize vote log", "path", w.logPath, "error", err)
	} else if created {
		w.logger.Info("vote log created", "path", w.logPath)
	}

	history := store.NewHistory(w.historyCapacity)
	hub := broadcast.NewHub(history, w.logger)
	defer hub.Close()

	httpServer := server.NewServer(history, hub, w.port, dashboard.Assets, w.title, w.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	w.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", w.port))

	rec := &recorder{
		history:   history,
		hub:       hub,
		writer:    writer,
		callbacks: w.snapshotCallbacks,
		logger:    w.logger,
	}
	scheduler := poller.NewScheduler(w.source, w.pollingInterval, poller.Extractor(w.extractor), rec, w.logger)
	scheduler.Start(ctx)

	<-ctx.Done()
	scheduler.Stop()
	w.logger.Info("votewatch stopped")
	return nil
}

// recorder runs the per-snapshot pipeline: buffer and broadcast, then
// persist, then callbacks.
type recorder struct {
	history   *store.History
	hub       *broadcast.Hub
	writer    *archive.Writer
	callbacks []func(Snapshot)
	logger    *slog.Logger
}

// Record implements poller.Recorder.
func (r *recorder) Record(_ context.Context, s store.Snapshot) {
	r.hub.Publish(s)
	metrics.HistorySize.Set(float64(r.history.Len()))

	if err := r.writer.Append(s); err != nil {
		metrics.ArchiveErrorsTotal.Inc()
		r.logger.Error("failed to append to vote log",
			"path", r.writer.Path(),
			"timestamp", s.Timestamp,
			"error", err,
		)
	} else {
		metrics.ArchiveRowsTotal.Inc()
	}

	r.logger.Info("snapshot recorded", "timestamp", s.Timestamp, "votes", s.Votes)

	if len(r.callbacks) > 0 {
		public := toPublicSnapshot(s)
		for _, cb := range r.callbacks {
			invokeCallbackSafe(cb, public, r.logger)
		}
	}
}

// Port returns the configured HTTP port for the dashboard server.
func (w *Watcher) Port() int {
	return w.port
}

// PollingInterval returns the configured pause between poll cycles.
func (w *Watcher) PollingInterval() time.Duration {
	return w.pollingInterval
}

// FetchTimeout returns the configured bound on a single poll request.
func (w *Watcher) FetchTimeout() time.Duration {
	return w.source.Timeout
}

// SourceURL returns the configured poll source URL.
func (w *Watcher) SourceURL() string {
	return w.source.URL
}

// Slate returns a copy of the configured candidate slate.
func (w *Watcher) Slate() Slate {
	return Slate(w.slate.Names())
}

// HistoryCapacity returns how many snapshots the in-memory history keeps.
func (w *Watcher) HistoryCapacity() int {
	return w.historyCapacity
}

// LogPath returns the durable vote log location.
func (w *Watcher) LogPath() string {
	return w.logPath
}

// toPublicSnapshot converts an internal snapshot to the public API type.
// Votes are copied so callbacks cannot mutate buffered history.
func toPublicSnapshot(s store.Snapshot) Snapshot {
	votes := make(map[string]int64, len(s.Votes))
	for k, v := range s.Votes {
		votes[k] = v
	}
	return Snapshot{Timestamp: s.Timestamp, Votes: votes}
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Snapshot), s Snapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked",
				"panic", r,
				"timestamp", s.Timestamp,
			)
		}
	}()
	cb(s)
}
