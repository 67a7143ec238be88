package config

import (
	"log/slog"
	"sort"

	"github.com/jpalmerr/votewatch"
)

// BuildOptions converts parsed configuration into [votewatch.Option] values.
//
// The logger is passed through as-is; a nil logger leaves the Watcher on
// [slog.Default].
func BuildOptions(cfg *Config, logger *slog.Logger) []votewatch.Option {
	opts := []votewatch.Option{
		votewatch.WithSource(cfg.Source.URL),
		votewatch.WithPort(cfg.Port),
		votewatch.WithPollingInterval(cfg.PollInterval.Duration()),
		votewatch.WithFetchTimeout(cfg.Source.Timeout.Duration()),
		votewatch.WithHistoryCapacity(cfg.History.Capacity),
		votewatch.WithLogPath(cfg.Archive.Path),
		votewatch.WithSyncWrites(cfg.Archive.Sync),
	}

	if len(cfg.Source.Headers) > 0 {
		opts = append(opts, votewatch.WithSourceHeaders(mapToKeyValuePairs(cfg.Source.Headers)...))
	}
	if len(cfg.Slate) > 0 {
		opts = append(opts, votewatch.WithSlate(cfg.Slate...))
	}
	if cfg.Title != "" {
		opts = append(opts, votewatch.WithTitle(cfg.Title))
	}
	if logger != nil {
		opts = append(opts, votewatch.WithLogger(logger))
	}
	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
