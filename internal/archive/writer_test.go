package archive

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jpalmerr/votewatch/internal/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSlate = []string{"A", "B"}

func readLines(t *testing.T, fsys afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// flakyFs fails every OpenFile call whose 1-based sequence number is in failOn.
type flakyFs struct {
	afero.Fs
	calls  atomic.Int64
	failOn map[int64]bool
}

func (f *flakyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	n := f.calls.Add(1)
	if f.failOn[n] {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestEnsureInitialized_WritesHeaderOnce(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := NewWriter(fsys, "votes.csv", testSlate)

	created, err := w.EnsureInitialized()
	require.NoError(t, err)
	assert.True(t, created)

	created, err = w.EnsureInitialized()
	require.NoError(t, err)
	assert.False(t, created, "second call must not rewrite the header")

	// a fresh writer on the same file behaves like a process restart
	created, err = NewWriter(fsys, "votes.csv", testSlate).EnsureInitialized()
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, []string{"timestamp,A,B"}, readLines(t, fsys, "votes.csv"))
}

func TestEnsureInitialized_LeavesExistingLogUntouched(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "votes.csv", []byte("timestamp,A,B\nt1,1,2\n"), 0o644))

	_, err := NewWriter(fsys, "votes.csv", testSlate).EnsureInitialized()
	require.NoError(t, err)

	assert.Equal(t, []string{"timestamp,A,B", "t1,1,2"}, readLines(t, fsys, "votes.csv"))
}

func TestEnsureInitialized_CreatesParentDirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := NewWriter(fsys, "data/2025/votes.csv", testSlate)

	_, err := w.EnsureInitialized()
	require.NoError(t, err)

	exists, err := afero.Exists(fsys, "data/2025/votes.csv")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnsureInitialized_ReadOnlyFilesystem(t *testing.T) {
	w := NewWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), "votes.csv", testSlate)

	_, err := w.EnsureInitialized()
	assert.Error(t, err)
}

func TestAppend_FormatsRowInSlateOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := NewWriter(fsys, "votes.csv", testSlate)
	_, err := w.EnsureInitialized()
	require.NoError(t, err)

	err = w.Append(store.Snapshot{
		Timestamp: "2025-11-13T18:00:00.000Z",
		Votes:     map[string]int64{"B": 3, "A": 5},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"timestamp,A,B",
		"2025-11-13T18:00:00.000Z,5,3",
	}, readLines(t, fsys, "votes.csv"))
}

func TestAppend_MissingCandidatesAreZeroAndUnknownNamesDropped(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := NewWriter(fsys, "votes.csv", testSlate)

	err := w.Append(store.Snapshot{
		Timestamp: "t1",
		Votes:     map[string]int64{"B": 7, "Zed Outsider": 99},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"timestamp,A,B", "t1,0,7"}, readLines(t, fsys, "votes.csv"))
}

func TestAppend_RecreatesMissingLogWithHeader(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := NewWriter(fsys, "votes.csv", testSlate)
	_, err := w.EnsureInitialized()
	require.NoError(t, err)

	require.NoError(t, fsys.Remove("votes.csv"))
	require.NoError(t, w.Append(store.Snapshot{Timestamp: "t1", Votes: map[string]int64{"A": 1}}))

	assert.Equal(t, []string{"timestamp,A,B", "t1,1,0"}, readLines(t, fsys, "votes.csv"))
}

func TestAppend_QuotesNamesWithCommas(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := NewWriter(fsys, "votes.csv", []string{"Hug, François", "Arena"})

	require.NoError(t, w.Append(store.Snapshot{Timestamp: "t1", Votes: map[string]int64{"Hug, François": 4}}))

	assert.Equal(t, []string{`timestamp,"Hug, François",Arena`, "t1,4,0"}, readLines(t, fsys, "votes.csv"))
}

// TestAppend_FailureDoesNotBlockLaterAppends checks that the row count is
// header plus every successful append, whatever happened to other rows.
func TestAppend_FailureDoesNotBlockLaterAppends(t *testing.T) {
	// call 1 is EnsureInitialized; calls 3 and 4 are the 2nd and 3rd appends
	fsys := &flakyFs{Fs: afero.NewMemMapFs(), failOn: map[int64]bool{3: true, 4: true}}
	w := NewWriter(fsys, "votes.csv", testSlate)
	_, err := w.EnsureInitialized()
	require.NoError(t, err)

	var failures int
	for i := 0; i < 5; i++ {
		if err := w.Append(store.Snapshot{Timestamp: "t", Votes: map[string]int64{"A": int64(i)}}); err != nil {
			failures++
		}
	}

	assert.Equal(t, 2, failures)
	lines := readLines(t, fsys.Fs, "votes.csv")
	assert.Len(t, lines, 1+3)
	assert.Equal(t, []string{"timestamp,A,B", "t,0,0", "t,3,0", "t,4,0"}, lines)
}

func TestAppend_ConcurrentRowsDoNotInterleave(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := NewWriter(fsys, "votes.csv", testSlate, WithSync(true))
	_, err := w.EnsureInitialized()
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, w.Append(store.Snapshot{
				Timestamp: "2025-11-13T18:00:00.000Z",
				Votes:     map[string]int64{"A": 123456, "B": int64(i)},
			}))
		}(i)
	}
	wg.Wait()

	lines := readLines(t, fsys, "votes.csv")
	require.Len(t, lines, n+1)
	for _, line := range lines[1:] {
		assert.Len(t, strings.Split(line, ","), 3, "malformed row %q", line)
		assert.True(t, strings.HasPrefix(line, "2025-11-13T18:00:00.000Z,123456,"), "malformed row %q", line)
	}
}

func TestFormatRow(t *testing.T) {
	row := FormatRow([]string{"A", "B", "C"}, store.Snapshot{
		Timestamp: "ts",
		Votes:     map[string]int64{"C": 1, "A": 2},
	})
	assert.Equal(t, []string{"ts", "2", "0", "1"}, row)
}

func TestHeader(t *testing.T) {
	w := NewWriter(afero.NewMemMapFs(), "votes.csv", testSlate)
	assert.Equal(t, []string{"timestamp", "A", "B"}, w.Header())
	assert.Equal(t, "votes.csv", w.Path())
}
