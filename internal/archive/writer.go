package archive

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/jpalmerr/votewatch/internal/store"
	"github.com/spf13/afero"
)

const (
	defaultFilePerm = 0o644
	defaultDirPerm  = 0o755

	timestampColumn = "timestamp"
)

// Writer appends snapshots to a CSV log with a fixed column schema.
//
// All methods are safe for concurrent use.
type Writer struct {
	fs    afero.Fs
	path  string
	slate []string
	sync  bool

	mu sync.Mutex
}

// Option configures a [Writer].
type Option func(*Writer)

// WithSync makes every append fsync the log before returning.
//
// Without it rows are handed to the OS on each append but not forced to
// stable storage.
func WithSync(enabled bool) Option {
	return func(w *Writer) {
		w.sync = enabled
	}
}

// NewWriter creates a [Writer] for the log at path on fsys.
//
// slate fixes the column order for the lifetime of the writer. The log is
// not touched until [Writer.EnsureInitialized] or [Writer.Append] is called.
func NewWriter(fsys afero.Fs, path string, slate []string, opts ...Option) *Writer {
	w := &Writer{
		fs:    fsys,
		path:  path,
		slate: append([]string(nil), slate...),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the location of the log.
func (w *Writer) Path() string {
	return w.path
}

// Header returns the header columns: "timestamp" then the slate.
func (w *Writer) Header() []string {
	header := make([]string, 0, len(w.slate)+1)
	header = append(header, timestampColumn)
	return append(header, w.slate...)
}

// EnsureInitialized creates the log with its header row if it does not exist.
//
// It is idempotent and safe to call on every process start; an existing log
// is left untouched. created reports whether this call wrote the header.
func (w *Writer) EnsureInitialized() (created bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ensureInitialized()
}

// Append formats one row for s and appends it to the log.
//
// If the log has disappeared since initialization it is recreated with a
// fresh header first. A failed append leaves the log as it was and does not
// affect later appends.
func (w *Writer) Append(s store.Snapshot) error {
	line, err := encodeRecord(FormatRow(w.slate, s))
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.fs.OpenFile(w.path, os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if errors.Is(err, os.ErrNotExist) {
		if _, err = w.ensureInitialized(); err != nil {
			return err
		}
		f, err = w.fs.OpenFile(w.path, os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	}
	if err != nil {
		return fmt.Errorf("failed to open vote log: %w", err)
	}

	return w.writeAndClose(f, line)
}

// FormatRow renders s as log columns in slate order.
//
// Candidates missing from s are rendered as "0"; names outside the slate are
// dropped.
func FormatRow(slate []string, s store.Snapshot) []string {
	row := make([]string, 0, len(slate)+1)
	row = append(row, s.Timestamp)
	for _, name := range slate {
		row = append(row, strconv.FormatInt(s.Votes[name], 10))
	}
	return row
}

// ensureInitialized must be called with w.mu held.
func (w *Writer) ensureInitialized() (bool, error) {
	if dir := filepath.Dir(w.path); dir != "." && dir != "" {
		if err := w.fs.MkdirAll(dir, defaultDirPerm); err != nil {
			return false, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	// O_EXCL makes creation and the existence check a single step
	f, err := w.fs.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, defaultFilePerm)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create vote log: %w", err)
	}

	header, err := encodeRecord(w.Header())
	if err != nil {
		_ = f.Close()
		return false, fmt.Errorf("failed to encode header: %w", err)
	}
	if err := w.writeAndClose(f, header); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Writer) writeAndClose(f afero.File, line []byte) error {
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write vote log: %w", err)
	}
	if w.sync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to sync vote log: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close vote log: %w", err)
	}
	return nil
}

// encodeRecord renders one CSV line, quoting fields only when needed.
func encodeRecord(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(fields); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
