package votewatch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/spf13/afero"
)

// wConfig holds mutable state during Watcher construction.
type wConfig struct {
	title             string
	sourceURL         string
	headers           map[string]string
	fetchTimeout      time.Duration
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

// Option is a function that configures a [Watcher] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*wConfig) error

// WithSource sets the poll source URL. Required.
//
// Only http and https URLs are accepted.
//
// Example:
//
//	w, err := votewatch.New(
//	    votewatch.WithSource("https://polls.example.com/api/polls/42"),
//	)
func WithSource(rawURL string) Option {
	return func(cfg *wConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid source URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source URL must use http or https, got %q", rawURL)
		}
		if u.Host == "" {
			return fmt.Errorf("source URL must include a host, got %q", rawURL)
		}
		cfg.sourceURL = rawURL
		return nil
	}
}

// WithSourceHeaders adds HTTP headers sent with every poll request.
//
// Arguments are key-value pairs. Can be called multiple times; later values
// for the same key win.
//
// Returns an error if an odd number of arguments is given.
func WithSourceHeaders(kv ...string) Option {
	return func(cfg *wConfig) error {
		if len(kv)%2 != 0 {
			return errors.New("source headers must be key-value pairs")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(kv)/2)
		}
		for i := 0; i < len(kv); i += 2 {
			cfg.headers[kv[i]] = kv[i+1]
		}
		return nil
	}
}

// WithFetchTimeout bounds a single poll request. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *wConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithPollingInterval sets the pause between the end of one poll cycle and
// the start of the next. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *wConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard and event streams.
// Defaults to 3000.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *wConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithSlate sets the candidates tracked in the durable vote log, in column
// order. Defaults to [DefaultSlate].
//
// Returns an error if the names do not form a valid [Slate].
func WithSlate(names ...string) Option {
	return func(cfg *wConfig) error {
		slate, err := NewSlate(names...)
		if err != nil {
			return err
		}
		cfg.slate = slate
		return nil
	}
}

// WithHistoryCapacity sets how many snapshots the in-memory history keeps.
// Defaults to 2000.
//
// Returns an error if n is zero or negative.
func WithHistoryCapacity(n int) Option {
	return func(cfg *wConfig) error {
		if n <= 0 {
			return errors.New("history capacity must be positive")
		}
		cfg.historyCapacity = n
		return nil
	}
}

// WithLogPath sets the durable vote log location. Defaults to "votes.csv"
// in the working directory.
func WithLogPath(path string) Option {
	return func(cfg *wConfig) error {
		if path == "" {
			return errors.New("log path cannot be empty")
		}
		cfg.logPath = path
		return nil
	}
}

// WithSyncWrites makes every vote log append fsync before returning.
func WithSyncWrites(enabled bool) Option {
	return func(cfg *wConfig) error {
		cfg.syncWrites = enabled
		return nil
	}
}

// WithFilesystem sets the filesystem holding the vote log. Defaults to the
// OS filesystem.
//
// Returns an error if fs is nil.
func WithFilesystem(fs afero.Fs) Option {
	return func(cfg *wConfig) error {
		if fs == nil {
			return errors.New("filesystem cannot be nil")
		}
		cfg.fs = fs
		return nil
	}
}

// WithExtractor replaces [ChoicesExtractor] as the way poll source bodies
// become vote counts.
//
// Returns an error if fn is nil.
func WithExtractor(fn VoteExtractor) Option {
	return func(cfg *wConfig) error {
		if fn == nil {
			return errors.New("extractor cannot be nil")
		}
		cfg.extractor = fn
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Watcher instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *wConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSnapshotCallback registers a function called for every recorded
// snapshot, after it is buffered, broadcast, and persisted.
//
// Multiple callbacks run in registration order. Callbacks are invoked
// synchronously from the poll loop and must not block; a slow callback delays
// the next poll. Panics within callbacks are recovered and logged.
//
// Example:
//
//	w, err := votewatch.New(
//	    votewatch.WithSource(src),
//	    votewatch.WithSnapshotCallback(func(s votewatch.Snapshot) {
//	        log.Printf("%s: %d candidates", s.Timestamp, len(s.Votes))
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *wConfig) error {
		if cb == nil {
			return nil
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "Votewatch".
func WithTitle(title string) Option {
	return func(cfg *wConfig) error {
		cfg.title = title
		return nil
	}
}
