package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh root command with stdin and a minimal config file.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "catlog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("version: 1\n"), 0o644))

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "catlog dev"))
}

func TestPipeDefaultFilter(t *testing.T) {
	out, _, err := execute(t, "start\nerror 500 occurred\nok 200\n", "--no-image")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "Detected!"))
	assert.Contains(t, out, "500 Detected!")

	start := strings.Index(out, "start\n")
	detected := strings.Index(out, "error 500 occurred\n")
	banner := strings.Index(out, "500 Detected!")
	ok := strings.Index(out, "ok 200\n")
	require.True(t, start >= 0 && detected >= 0 && ok >= 0, out)
	assert.Less(t, start, detected)
	assert.Less(t, detected, banner)
	assert.Less(t, banner, ok)
}

func TestPipeExplicitStatus(t *testing.T) {
	out, stderr, err := execute(t, "500 here\n503 here\n", "--no-image", "--status", "503,abc,999")
	require.NoError(t, err)

	assert.Contains(t, out, "500 here\n")
	assert.Contains(t, out, "503 Detected!")
	assert.NotContains(t, out, "500 Detected!")
	assert.Contains(t, stderr, "ignoring invalid status code")
	assert.Contains(t, stderr, "abc")
	assert.Contains(t, stderr, "999")
}

func TestPipeAll(t *testing.T) {
	out, _, err := execute(t, "GET / 200\nGET /old 301\n", "--no-image", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "200 Detected!")
	assert.Contains(t, out, "301 Detected!")
}

func TestPipeWithImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("CATLOG_IMAGE_CACHE_DIR", t.TempDir())

	out, _, err := execute(t, "GET /missing 404\n", "--image-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "404 Detected!")
	assert.Contains(t, out, "/404 · image/jpeg · 10 B]")
}

func TestExecExitStatus(t *testing.T) {
	out, _, err := execute(t, "", "--no-image", "-e", "echo 'GET /x 404'; exit 3")

	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.code)
	assert.Contains(t, out, "GET /x 404\n")
	assert.Contains(t, out, "404 Detected!")
}

func TestExecSuccess(t *testing.T) {
	out, _, err := execute(t, "", "--no-image", "--exec", "echo ok; echo 'boom 503' >&2")
	require.NoError(t, err)
	assert.Contains(t, out, "ok\n")
	assert.Contains(t, out, "503 Detected!")
}

func TestFollowMissingFile(t *testing.T) {
	_, _, err := execute(t, "", "-f", filepath.Join(t.TempDir(), "missing.log"))
	require.Error(t, err)
}

func TestFollowAndExecExclusive(t *testing.T) {
	_, _, err := execute(t, "", "-f", "/var/log/syslog", "-e", "true")
	require.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "catlog.yaml")

	out, _, err := execute(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated "+path)

	_, _, err = execute(t, "", "config", "init", path)
	require.Error(t, err, "init must not overwrite without --force")

	out, _, err = execute(t, "", "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid (stdin mode)")
}

func TestConfigValidateInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := []byte("version: 2\nfollow: /var/log/a.log\nexec: tail -f b.log\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, stderr, err := execute(t, "", "config", "validate", path)
	require.Error(t, err)
	assert.Contains(t, stderr, "2 error(s)")
	assert.Contains(t, stderr, "version must be 1")
	assert.Contains(t, stderr, "mutually exclusive")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchReceivesDetections(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "catlog.sock")
	cfgPath := filepath.Join(dir, "catlog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("version: 1\n"), 0o644))

	stdin, feed := io.Pipe()
	root := newRootCmd()
	root.SetIn(stdin)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", cfgPath, "--no-image", "--socket", socketPath})
	rootDone := make(chan error, 1)
	go func() { rootDone <- root.Execute() }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	var watched syncBuffer
	watcher := newRootCmd()
	watcher.SetOut(&watched)
	watcher.SetErr(io.Discard)
	watcher.SetArgs([]string{"--config", cfgPath, "watch", "--socket", socketPath})
	watchDone := make(chan error, 1)
	go func() { watchDone <- watcher.Execute() }()

	require.Eventually(t, func() bool {
		return strings.Contains(watched.String(), "watching stdin:pipe:-")
	}, 5*time.Second, 10*time.Millisecond)

	_, err := io.WriteString(feed, "GET /gone 410\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(watched.String(), "GET /gone 410")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, feed.Close())
	select {
	case err := <-rootDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("catlog did not stop at end of input")
	}
	select {
	case err := <-watchDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop when catlog exited")
	}
}
