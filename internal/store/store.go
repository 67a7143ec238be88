package store

import "time"

// TimestampLayout is the ISO-8601 layout used for [Snapshot.Timestamp].
// Millisecond precision in UTC, e.g. "2025-11-13T18:04:05.123Z".
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DefaultCapacity is the number of snapshots kept when no capacity is given.
const DefaultCapacity = 2000

// Snapshot is one normalized observation of candidate vote counts.
//
// Snapshot is immutable once created. Votes may omit slate candidates that
// were absent from the source payload, and may contain names outside the
// slate.
type Snapshot struct {
	// Timestamp is when the snapshot was taken, formatted with [TimestampLayout].
	Timestamp string `json:"timestamp"`

	// Votes maps a normalized candidate name to its vote count.
	Votes map[string]int64 `json:"votes"`
}

// NewSnapshot builds a [Snapshot] stamped with t in UTC.
//
// The votes map is copied so the caller may keep mutating its own map.
func NewSnapshot(t time.Time, votes map[string]int64) Snapshot {
	return Snapshot{
		Timestamp: FormatTimestamp(t),
		Votes:     copyVotes(votes),
	}
}

// FormatTimestamp renders t with [TimestampLayout] in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Reader is the read side of the history, used by transports that replay
// or expose the buffered snapshots.
type Reader interface {
	// Snapshot returns a point-in-time copy of the buffered snapshots,
	// oldest first.
	Snapshot() []Snapshot

	// Len returns the number of buffered snapshots.
	Len() int
}

func copyVotes(votes map[string]int64) map[string]int64 {
	if votes == nil {
		return map[string]int64{}
	}
	cp := make(map[string]int64, len(votes))
	for k, v := range votes {
		cp[k] = v
	}
	return cp
}
