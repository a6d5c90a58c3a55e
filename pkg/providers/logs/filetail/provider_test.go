package filetail

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/catlog/pkg/core"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTest(t *testing.T, path string) *Tailer {
	t.Helper()
	tailer, err := Open(path, WithPollInterval(10*time.Millisecond), WithLogger(testLogger))
	require.NoError(t, err)
	t.Cleanup(func() { tailer.Close() })
	return tailer
}

func next(t *testing.T, tailer *Tailer) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tailer.Next(ctx)
	require.NoError(t, err)
	return line.Line
}

func expectNothing(t *testing.T, tailer *Tailer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	line, err := tailer.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "unexpected line %q", line.Line)
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestTailerDrainsThenFollows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	require.NoError(t, os.WriteFile(path, []byte("first\nsecond 404\n"), 0o644))

	tailer := openTest(t, path)
	assert.Equal(t, "first", next(t, tailer))
	assert.Equal(t, "second 404", next(t, tailer))
	expectNothing(t, tailer)

	appendFile(t, path, "third\nfourth\nfifth\n")
	assert.Equal(t, "third", next(t, tailer))
	assert.Equal(t, "fourth", next(t, tailer))
	assert.Equal(t, "fifth", next(t, tailer))
	expectNothing(t, tailer)
	assert.EqualValues(t, len("first\nsecond 404\nthird\nfourth\nfifth\n"), tailer.Offset())
}

func TestTailerHoldsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("complete\nparti"), 0o644))

	tailer := openTest(t, path)
	assert.Equal(t, "complete", next(t, tailer))
	expectNothing(t, tailer)
	assert.EqualValues(t, len("complete\n"), tailer.Offset())

	appendFile(t, path, "al 500\r\n")
	assert.Equal(t, "partial 500", next(t, tailer))
	expectNothing(t, tailer)
}

func TestTailerTruncationRestartsAtZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("old line one\nold line two\n"), 0o644))

	tailer := openTest(t, path)
	next(t, tailer)
	next(t, tailer)
	expectNothing(t, tailer)

	require.NoError(t, os.WriteFile(path, []byte("new\n"), 0o644))
	assert.Equal(t, "new", next(t, tailer))
	assert.EqualValues(t, len("new\n"), tailer.Offset())
}

func TestTailerFollowsRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("before\n"), 0o644))

	tailer := openTest(t, path)
	assert.Equal(t, "before", next(t, tailer))
	expectNothing(t, tailer)

	appendFile(t, path, "late write\n")
	require.NoError(t, os.Rename(path, filepath.Join(dir, "app.log.1")))
	require.NoError(t, os.WriteFile(path, []byte("after rotation\n"), 0o644))

	assert.Equal(t, "late write", next(t, tailer))
	assert.Equal(t, "after rotation", next(t, tailer))
}

func TestTailerCancelAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	tailer := openTest(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tailer.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)

	errCh := make(chan error, 1)
	go func() {
		_, err := tailer.Next(context.Background())
		errCh <- err
	}()
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, tailer.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, core.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.log"))
	require.ErrorIs(t, err, core.ErrSourceIO)
	require.ErrorIs(t, err, os.ErrNotExist)
}
