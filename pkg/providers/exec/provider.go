// Package exec runs a shell command and tails its stdout and stderr.
package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	osexec "os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modoterra/catlog/pkg/core"
)

const (
	// DefaultShell runs the command string, so pipes and quoting work as typed.
	DefaultShell = "sh"
	// DefaultGracePeriod is how long Close waits after SIGTERM before SIGKILL.
	DefaultGracePeriod = 5 * time.Second

	mergeBuffer = 256
)

// Option configures a Tailer.
type Option func(*Tailer)

func WithShell(shell string) Option {
	return func(t *Tailer) {
		if shell != "" {
			t.shell = shell
		}
	}
}

func WithDir(dir string) Option {
	return func(t *Tailer) { t.dir = dir }
}

func WithEnv(env map[string]string) Option {
	return func(t *Tailer) { t.env = env }
}

func WithGracePeriod(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.grace = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tailer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tailer runs a command and merges its stdout and stderr lines into a single
// ordered consumption. Each stream keeps its own order; lines from the two
// streams interleave as they arrive.
type Tailer struct {
	command string
	id      string
	shell   string
	dir     string
	env     map[string]string
	grace   time.Duration
	logger  *slog.Logger

	cmd    *osexec.Cmd
	lines  chan core.LogLine
	done   chan struct{} // closed by Close
	exited chan struct{} // closed once readers and Wait have finished

	// Written before exited is closed.
	readErr  error
	exitCode int

	closeOnce sync.Once
}

// Start launches command through the shell. Launch failures wrap
// core.ErrProcessSpawn and happen before any line is produced.
func Start(command string, opts ...Option) (*Tailer, error) {
	t := &Tailer{
		command:  command,
		shell:    DefaultShell,
		grace:    DefaultGracePeriod,
		logger:   slog.Default(),
		lines:    make(chan core.LogLine, mergeBuffer),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		exitCode: -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.id = core.SourceID(core.KindExec, t.shell, command)

	if command == "" {
		return nil, errors.Join(errors.New("empty command"), core.ErrProcessSpawn)
	}

	cmd := osexec.Command(t.shell, "-c", command)
	cmd.Dir = t.dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = os.Environ()
	for k, v := range t.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("stdout pipe: %w", err), core.ErrProcessSpawn)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("stderr pipe: %w", err), core.ErrProcessSpawn)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Join(fmt.Errorf("start %q: %w", command, err), core.ErrProcessSpawn)
	}
	t.cmd = cmd

	t.logger.Info("process started", "pid", cmd.Process.Pid, "command", command)

	// One reader per stream: blocking on one pipe while the other fills up
	// would stall the child.
	var readers errgroup.Group
	readers.Go(func() error {
		return core.ReadLines(stdoutPipe, func(line string) { t.emit("stdout", line) })
	})
	readers.Go(func() error {
		return core.ReadLines(stderrPipe, func(line string) { t.emit("stderr", line) })
	})

	go t.wait(&readers)

	return t, nil
}

// ID returns the source ID of the command.
func (t *Tailer) ID() string { return t.id }

// emit forwards a line to the merge point. After Close, lines are dropped but
// the pipe keeps draining so the child never blocks on a full buffer.
func (t *Tailer) emit(stream, line string) {
	entry := core.LogLine{
		SourceID: t.id,
		TsUnixMs: time.Now().UnixMilli(),
		Stream:   stream,
		Line:     line,
	}
	select {
	case t.lines <- entry:
	case <-t.done:
	}
}

// wait drains both readers before reaping the child, so output written just
// before exit is never lost.
func (t *Tailer) wait(readers *errgroup.Group) {
	rerr := readers.Wait()
	werr := t.cmd.Wait()

	if t.cmd.ProcessState != nil {
		t.exitCode = t.cmd.ProcessState.ExitCode()
	}
	if rerr != nil {
		t.readErr = errors.Join(fmt.Errorf("read output of %q: %w", t.command, rerr), core.ErrSourceIO)
	}

	t.logger.Info("process exited", "pid", t.cmd.Process.Pid, "exit_code", t.exitCode, "err", werr)
	close(t.exited)
	close(t.lines)
}

// Next returns the next line from either stream. Once the process has exited
// and both streams are drained it returns io.EOF, or the read error if a
// stream failed.
func (t *Tailer) Next(ctx context.Context) (core.LogLine, error) {
	select {
	case <-t.done:
		return core.LogLine{}, core.ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return core.LogLine{}, ctx.Err()
	case <-t.done:
		return core.LogLine{}, core.ErrClosed
	case line, ok := <-t.lines:
		if ok {
			return line, nil
		}
		if t.readErr != nil {
			return core.LogLine{}, t.readErr
		}
		return core.LogLine{}, io.EOF
	}
}

// ExitCode returns the exit status of the process, or -1 while it is still
// running or when it was killed by a signal.
func (t *Tailer) ExitCode() int {
	select {
	case <-t.exited:
		return t.exitCode
	default:
		return -1
	}
}

// Exited is closed once the process has been reaped.
func (t *Tailer) Exited() <-chan struct{} { return t.exited }

// Close stops delivering lines and terminates the process group, escalating
// to SIGKILL after the grace period. It returns once the process is reaped.
func (t *Tailer) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)

		select {
		case <-t.exited:
			return
		default:
		}

		pid := t.cmd.Process.Pid
		t.logger.Info("stopping process", "pid", pid)
		syscall.Kill(-pid, syscall.SIGTERM)

		select {
		case <-t.exited:
		case <-time.After(t.grace):
			t.logger.Warn("process ignored SIGTERM, killing", "pid", pid, "grace", t.grace)
			syscall.Kill(-pid, syscall.SIGKILL)
			<-t.exited
		}
	})
	return nil
}
