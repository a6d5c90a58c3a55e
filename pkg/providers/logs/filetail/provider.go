// Package filetail follows a growing file by polling for appended bytes.
package filetail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/modoterra/catlog/pkg/core"
)

// DefaultPollInterval is how long the tailer waits before checking for new data.
const DefaultPollInterval = 100 * time.Millisecond

const readChunk = 32 * 1024

// Option configures a Tailer.
type Option func(*Tailer)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLogger sets the logger used for truncation and rotation notices.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tailer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tailer reads everything already in a file, then polls for appended lines.
// Only complete lines are emitted; a trailing partial line is held back until
// its terminator arrives.
type Tailer struct {
	path     string
	id       string
	interval time.Duration
	logger   *slog.Logger

	f       *os.File
	offset  int64    // bytes of complete lines already consumed
	partial []byte   // bytes read past offset without a terminator yet
	queue   []string // complete lines not yet returned
	buf     []byte

	mu        sync.Mutex // guards f against Close during rotation
	done      chan struct{}
	closeOnce sync.Once
}

// Open opens path for tailing.
func Open(path string, opts ...Option) (*Tailer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open %s: %w", path, err), core.ErrSourceIO)
	}

	t := &Tailer{
		path:     path,
		id:       core.SourceID(core.KindFile, "filetail", path),
		interval: DefaultPollInterval,
		logger:   slog.Default(),
		f:        f,
		buf:      make([]byte, readChunk),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.logger.Info("tailing file", "path", path, "interval", t.interval)
	return t, nil
}

// ID returns the source ID of the tailed file.
func (t *Tailer) ID() string { return t.id }

// Offset returns the number of bytes consumed as complete lines.
func (t *Tailer) Offset() int64 { return t.offset }

// Next returns the next complete line, waiting for one to be appended if
// necessary. It only returns on a line, a read error, cancellation or Close.
func (t *Tailer) Next(ctx context.Context) (core.LogLine, error) {
	for {
		if t.closed() {
			return core.LogLine{}, core.ErrClosed
		}

		if len(t.queue) > 0 {
			line := t.queue[0]
			t.queue = t.queue[1:]
			return core.LogLine{
				SourceID: t.id,
				TsUnixMs: time.Now().UnixMilli(),
				Stream:   "file",
				Line:     line,
			}, nil
		}

		n, err := t.fill()
		if err != nil {
			if t.closed() {
				return core.LogLine{}, core.ErrClosed
			}
			return core.LogLine{}, err
		}
		if n > 0 {
			continue
		}

		// Caught up: wait, then look for truncation or rotation.
		timer := time.NewTimer(t.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return core.LogLine{}, ctx.Err()
		case <-t.done:
			timer.Stop()
			return core.LogLine{}, core.ErrClosed
		case <-timer.C:
		}

		if err := t.checkRotation(); err != nil {
			return core.LogLine{}, err
		}
	}
}

// Close releases the file handle. Pending and future Next calls return
// core.ErrClosed.
func (t *Tailer) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		err = t.f.Close()
		t.mu.Unlock()
	})
	return err
}

func (t *Tailer) closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// fill reads whatever is available and splits it into complete lines.
func (t *Tailer) fill() (int, error) {
	n, err := t.f.Read(t.buf)
	if n > 0 {
		t.consume(t.buf[:n])
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, errors.Join(fmt.Errorf("read %s: %w", t.path, err), core.ErrSourceIO)
	}
	return n, nil
}

func (t *Tailer) consume(chunk []byte) {
	t.partial = append(t.partial, chunk...)
	for {
		i := bytes.IndexByte(t.partial, '\n')
		if i < 0 {
			break
		}
		t.queue = append(t.queue, core.TrimEOL(string(t.partial[:i+1])))
		t.offset += int64(i + 1)
		t.partial = t.partial[i+1:]
	}
	if len(t.partial) == 0 {
		t.partial = nil
	}
}

// checkRotation restarts from the beginning when the file shrank below the
// read position, and reopens the path when it now names a different file.
func (t *Tailer) checkRotation() error {
	info, err := t.f.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat %s: %w", t.path, err), core.ErrSourceIO)
	}

	pos := t.offset + int64(len(t.partial))
	if info.Size() < pos {
		t.logger.Warn("file truncated, restarting from beginning", "path", t.path, "size", info.Size(), "offset", pos)
		if _, err := t.f.Seek(0, io.SeekStart); err != nil {
			return errors.Join(fmt.Errorf("seek %s: %w", t.path, err), core.ErrSourceIO)
		}
		t.offset = 0
		t.partial = nil
		return nil
	}

	pathInfo, err := os.Stat(t.path)
	if err != nil || os.SameFile(info, pathInfo) {
		// Missing path means the file is mid-rotation; keep the old handle.
		return nil
	}

	// Pick up anything written to the old file before it was renamed. An
	// unterminated tail will never be completed, so it is flushed as a line.
	for {
		n, err := t.fill()
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
	}
	if len(t.partial) > 0 {
		t.queue = append(t.queue, core.TrimEOL(string(t.partial)))
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil
	}

	t.mu.Lock()
	if t.closed() {
		t.mu.Unlock()
		f.Close()
		return core.ErrClosed
	}
	old := t.f
	t.f = f
	t.mu.Unlock()
	old.Close()

	t.logger.Info("file rotated, reopening", "path", t.path)
	t.offset = 0
	t.partial = nil
	return nil
}
