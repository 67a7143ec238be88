// Package votewatch provides a live vote tracker for a remote poll.
//
// A [Watcher] polls a poll source endpoint on a fixed pause, turns each
// response into a timestamped [Snapshot] of per-candidate vote counts, and
// fans every snapshot out three ways:
//
//   - a bounded in-memory history (most recent 2000 snapshots by default)
//   - a durable CSV vote log with one column per [Slate] candidate
//   - every connected observer, over Server-Sent Events or WebSocket
//
// A newly connected observer first receives the whole history as one "init"
// event, then one "update" event per new snapshot.
//
// # Quick Start
//
//	w, _ := votewatch.New(votewatch.WithSource("https://polls.example.com/api/polls/42"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	w.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Watcher uses the functional options pattern for configuration:
//
//	w, err := votewatch.New(
//	    votewatch.WithSource(src),
//	    votewatch.WithSourceHeaders("Authorization", "Bearer token"),
//	    votewatch.WithPollingInterval(30 * time.Second),
//	    votewatch.WithPort(3000),
//	    votewatch.WithSlate("Lise Arena", "Pr Gauci"),
//	    votewatch.WithLogPath("/var/lib/votewatch/votes.csv"),
//	)
//
// # Extraction
//
// [ChoicesExtractor] reads a JSON body of the form
// {"choices":[{"value":"<label>","statistics":{"opinions":<count>}}]}.
// Candidate names are the first two words of each label before any colon or
// newline; counts are coerced to non-negative integers. A different payload
// shape can be handled with [WithExtractor].
//
// # Architecture
//
// The internal packages are not part of the public API:
//
//   - internal/poller: poll loop and HTTP client
//   - internal/store: snapshot type and bounded history buffer
//   - internal/archive: CSV vote log writer
//   - internal/broadcast: observer registry and event fan-out
//   - internal/server: HTTP routes, SSE and WebSocket streams
//   - internal/metrics: Prometheus collectors
//   - dashboard: embedded web UI assets
package votewatch
