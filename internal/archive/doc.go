// Package archive provides the append-only durable log of vote snapshots.
//
// The log is a UTF-8 CSV file. Its first line is a header naming the
// columns, "timestamp" followed by every slate candidate in slate order, and
// it is written exactly once, when the file is first created. Each recorded
// snapshot then adds one row with its counts in slate order; a candidate
// missing from the snapshot is rendered as 0 and names outside the slate are
// not persisted.
//
// The log is never rewritten or compacted. Rows are written one at a time
// under a mutex, each with a single write call, so concurrent appends cannot
// interleave their bytes.
//
// The filesystem is an [afero.Fs] so tests can run against memory-backed or
// failing filesystems.
package archive
