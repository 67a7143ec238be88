// Package store provides the bounded in-memory history of vote snapshots.
//
// This package is internal to VoteWatch and keeps the most recent snapshots
// observed from the poll source, oldest first. The history is replayed to
// every observer that connects so it can draw the series from the start.
//
// The main components are:
//
//   - [History]: Fixed-capacity ring of snapshots with FIFO eviction
//   - [Snapshot]: Storage and wire representation of one observation
//
// The history is designed for concurrent access. Copies returned by
// [History.Snapshot] are detached from the ring, so later appends, evictions,
// or a [History.Clear] never mutate a slice that was already handed out.
//
// Users of the votewatch library should not need to interact with this
// package directly. The history is managed internally by the Watcher.
package store
