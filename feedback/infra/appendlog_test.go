package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"feedback-drop/feedback/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testEnvelope(tag string) string {
	return domain.BeginMarker + "\n" + tag + strings.Repeat("x", 60) + "\n" + domain.EndMarker
}

func newTestLog(t *testing.T, opts ...AppendLogOption) *AppendLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedback.txt")
	l := NewAppendLog(path, discard, opts...)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendLog_AppendsInOrderWithoutTouchingPriorBytes(t *testing.T) {
	day := time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC)
	l := newTestLog(t, WithNow(func() time.Time { return day }))
	ctx := context.Background()

	var prev []byte
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(ctx, testEnvelope(fmt.Sprintf("m%d", i))))

		cur, err := os.ReadFile(l.Path())
		require.NoError(t, err)
		require.True(t, len(cur) > len(prev))
		assert.Equal(t, prev, cur[:len(prev)], "append %d rewrote earlier bytes", i)
		prev = cur
	}

	entries, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, "2026-10-14", e.Date)
		assert.Equal(t, testEnvelope(fmt.Sprintf("m%d", i)), e.Payload)
	}
	assert.NotContains(t, string(prev), "18:30")
}

func TestAppendLog_FileLayout(t *testing.T) {
	day := time.Date(2026, 10, 14, 0, 0, 1, 0, time.UTC)
	l := newTestLog(t, WithNow(func() time.Time { return day }))

	require.NoError(t, l.Append(context.Background(), testEnvelope("a")))

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, "--- 2026-10-14 ---\n"+testEnvelope("a")+"\n\n", string(raw))
}

func TestAppendLog_ReadBackMatchesSubmissions(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	oneLine := domain.BeginMarker + strings.Repeat("A", 60) + domain.EndMarker
	trailing := testEnvelope("t") + "\n"
	payloads := []string{oneLine, testEnvelope("n1"), trailing, testEnvelope("n2")}
	for _, p := range payloads {
		require.NoError(t, l.Append(ctx, p))
	}

	entries, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, len(payloads))
	for i, e := range entries {
		assert.Equal(t, payloads[i], e.Payload)
	}
}

func TestAppendLog_RefusesForgedDelimiter(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, testEnvelope("ok")))
	err := l.Append(ctx, testEnvelope("x")+"\n--- 1999-01-01 ---\nfake")
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	entries, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEqual(t, "1999-01-01", entries[0].Date)
}

func TestAppendLog_ConcurrentAppendsDoNotInterleave(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, testEnvelope(fmt.Sprintf("c%03d", i))))
		}(i)
	}
	wg.Wait()

	entries, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, n)

	seen := make(map[string]bool, n)
	for _, e := range entries {
		assert.False(t, seen[e.Payload], "duplicate entry")
		seen[e.Payload] = true
	}
	for i := 0; i < n; i++ {
		assert.True(t, seen[testEnvelope(fmt.Sprintf("c%03d", i))])
	}
}

func TestAppendLog_RestrictsPermissions(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.Append(context.Background(), testEnvelope("p")))

	info, err := os.Stat(l.Path())
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())
}

func TestAppendLog_ChmodFailureDoesNotFailAppend(t *testing.T) {
	calls := 0
	l := newTestLog(t, withChmod(func(string, os.FileMode) error {
		calls++
		return errors.New("operation not permitted")
	}))

	require.NoError(t, l.Append(context.Background(), testEnvelope("a")))
	require.NoError(t, l.Append(context.Background(), testEnvelope("b")))
	assert.Equal(t, 2, calls)

	entries, err := l.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

type fakeInfo struct {
	os.FileInfo
	size int64
}

func (i fakeInfo) Size() int64 { return i.size }

type failingFile struct {
	writeErr  error
	syncErr   error
	truncated []int64
}

func (f *failingFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return len(p) / 2, f.writeErr
	}
	return len(p), nil
}
func (f *failingFile) Sync() error                { return f.syncErr }
func (f *failingFile) Stat() (os.FileInfo, error) { return fakeInfo{size: 42}, nil }
func (f *failingFile) Truncate(size int64) error {
	f.truncated = append(f.truncated, size)
	return nil
}
func (f *failingFile) Close() error { return nil }

func TestAppendLog_DiskFullIsStorageFull(t *testing.T) {
	for name, ff := range map[string]*failingFile{
		"write ENOSPC": {writeErr: &os.PathError{Op: "write", Path: "feedback.txt", Err: unix.ENOSPC}},
		"write EDQUOT": {writeErr: &os.PathError{Op: "write", Path: "feedback.txt", Err: unix.EDQUOT}},
		"sync ENOSPC":  {syncErr: &os.PathError{Op: "sync", Path: "feedback.txt", Err: unix.ENOSPC}},
	} {
		t.Run(name, func(t *testing.T) {
			l := newTestLog(t, withOpener(func(string) (logFile, error) { return ff, nil }))

			err := l.Append(context.Background(), testEnvelope("full"))
			assert.ErrorIs(t, err, domain.ErrStorageFull)
			assert.ErrorIs(t, err, unix.ENOSPC, "original cause kept")
			assert.Equal(t, []int64{42}, ff.truncated, "partial entry rolled back")
		})
	}
}

func TestAppendLog_OtherIOErrorsAreGeneric(t *testing.T) {
	ff := &failingFile{writeErr: &os.PathError{Op: "write", Path: "feedback.txt", Err: unix.EIO}}
	l := newTestLog(t, withOpener(func(string) (logFile, error) { return ff, nil }))

	err := l.Append(context.Background(), testEnvelope("eio"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStorageFull)
}

func TestAppendLog_ClosedRejectsAppends(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "Close is idempotent")

	assert.ErrorIs(t, l.Append(context.Background(), testEnvelope("late")), domain.ErrStoreClosed)
}

func TestAppendLog_ReadAllMissingFileIsEmpty(t *testing.T) {
	l := newTestLog(t)

	entries, err := l.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = os.Stat(l.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "ReadAll must not create the log")
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(unix.ENOSPC), domain.ErrStorageFull)
	assert.ErrorIs(t, classify(fmt.Errorf("wrapped: %w", unix.EDQUOT)), domain.ErrStorageFull)
	assert.NotErrorIs(t, classify(unix.EACCES), domain.ErrStorageFull)
}
