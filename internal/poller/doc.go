// Package poller provides the polling loop that drives VoteWatch.
//
// This package is internal to VoteWatch and handles the periodic fetching of
// the poll source. A single [Scheduler] runs one cycle at a time: fetch the
// source, extract vote counts, hand a snapshot to the [Recorder], then sleep
// for the configured interval. The sleep starts after the cycle completes, so
// the effective period is cycle duration plus interval.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeout and size limits
//   - [Scheduler]: Sequential, cancellable poll loop
//   - [Recorder]: Sink for every non-empty snapshot
//   - [Extractor]: Turns a response body into vote counts
//
// No failure stops the loop. Transport errors, non-2xx responses, empty or
// malformed payloads, and extractor panics are logged and the loop carries on
// at its normal cadence.
//
// Users of the votewatch library should not need to interact with this
// package directly. Configuration is done through the main votewatch package.
package poller
