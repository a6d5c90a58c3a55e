// Package pipe reads lines from a finite stream such as piped standard input.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/modoterra/catlog/pkg/core"
)

// Source reads r line by line on a background goroutine, so a blocked read
// never holds up cancellation.
type Source struct {
	r      io.Reader
	name   string
	id     string
	logger *slog.Logger

	lines chan core.LogLine
	done  chan struct{}
	err   error // set before lines is closed

	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a source reading from r. name identifies the stream in logs and
// source IDs, e.g. "-" for stdin.
func New(r io.Reader, name string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		r:      r,
		name:   name,
		id:     core.SourceID(core.KindStdin, "pipe", name),
		logger: logger,
		lines:  make(chan core.LogLine, 64),
		done:   make(chan struct{}),
	}
}

// ID returns the source ID.
func (s *Source) ID() string { return s.id }

func (s *Source) start() {
	go func() {
		defer close(s.lines)
		err := core.ReadLines(s.r, func(line string) {
			select {
			case s.lines <- core.LogLine{
				SourceID: s.id,
				TsUnixMs: time.Now().UnixMilli(),
				Stream:   "stdin",
				Line:     line,
			}:
			case <-s.done:
			}
		})
		if err != nil {
			s.err = errors.Join(fmt.Errorf("read %s: %w", s.name, err), core.ErrSourceIO)
		}
	}()
}

// Next returns the next line, or io.EOF once the input is exhausted.
func (s *Source) Next(ctx context.Context) (core.LogLine, error) {
	select {
	case <-s.done:
		return core.LogLine{}, core.ErrClosed
	default:
	}
	s.startOnce.Do(s.start)

	select {
	case <-ctx.Done():
		return core.LogLine{}, ctx.Err()
	case <-s.done:
		return core.LogLine{}, core.ErrClosed
	case line, ok := <-s.lines:
		if ok {
			return line, nil
		}
		if s.err != nil {
			return core.LogLine{}, s.err
		}
		return core.LogLine{}, io.EOF
	}
}

// Close stops delivery. The underlying reader is closed only when it
// implements io.Closer and is not the process's standard input.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if c, ok := s.r.(io.Closer); ok && s.name != "-" {
			err = c.Close()
		}
		s.logger.Debug("pipe closed", "name", s.name)
	})
	return err
}
