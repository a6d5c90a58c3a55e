// Package dispatch drives a line source: every line is echoed, scanned for a
// status code and, when the filter agrees, handed to the notifier.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/modoterra/catlog/pkg/core"
	"github.com/modoterra/catlog/pkg/metrics"
	"github.com/modoterra/catlog/pkg/notify"
)

// DefaultNotifyTimeout bounds a single notification so a hung image service
// cannot hold up the next line for long.
const DefaultNotifyTimeout = 10 * time.Second

// State is the dispatcher lifecycle.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateEmitting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateEmitting:
		return "emitting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats counts what a dispatcher has seen so far. Detections only counts
// codes that passed the filter.
type Stats struct {
	State         string `json:"state"`
	Lines         uint64 `json:"lines"`
	Detections    uint64 `json:"detections"`
	Notifications uint64 `json:"notifications"`
	Failures      uint64 `json:"failures"`
	Throttled     uint64 `json:"throttled"`
}

type flusher interface {
	Flush() error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithNotifyTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.notifyTimeout = timeout
		}
	}
}

// Dispatcher consumes one source at a time.
type Dispatcher struct {
	echo          io.Writer
	filter        core.FilterConfig
	notifier      notify.Notifier
	notifyTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger

	state         atomic.Int32
	lines         atomic.Uint64
	detections    atomic.Uint64
	notifications atomic.Uint64
	failures      atomic.Uint64
	throttled     atomic.Uint64
}

// New creates a dispatcher echoing to echo. A nil notifier discards detections.
func New(echo io.Writer, filter core.FilterConfig, notifier notify.Notifier, opts ...Option) *Dispatcher {
	if notifier == nil {
		notifier = notify.Nop
	}
	d := &Dispatcher{
		echo:          echo,
		filter:        filter,
		notifier:      notifier,
		notifyTimeout: DefaultNotifyTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		State:         d.State().String(),
		Lines:         d.lines.Load(),
		Detections:    d.detections.Load(),
		Notifications: d.notifications.Load(),
		Failures:      d.failures.Load(),
		Throttled:     d.throttled.Load(),
	}
}

// Run reads src until it is exhausted, ctx is cancelled, src is closed, or an
// error occurs, then closes src. Exhaustion and cancellation return nil; a
// source failure or a failed echo is returned as is.
func (d *Dispatcher) Run(ctx context.Context, src core.LineSource) error {
	defer func() {
		if err := src.Close(); err != nil {
			d.logger.Warn("close source", "err", err)
		}
		d.state.Store(int32(StateClosed))
	}()

	for {
		d.state.Store(int32(StateReading))
		line, err := src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, core.ErrClosed):
				return nil
			case ctx.Err() != nil && errors.Is(err, ctx.Err()):
				return nil
			default:
				return err
			}
		}

		d.state.Store(int32(StateEmitting))
		if err := d.handle(ctx, line); err != nil {
			return err
		}
	}
}

// handle echoes one line and runs detection. Only an echo failure is returned;
// notification problems are logged and ingestion carries on.
func (d *Dispatcher) handle(ctx context.Context, line core.LogLine) error {
	if err := d.emit(line.Line); err != nil {
		return fmt.Errorf("echo: %w", err)
	}
	d.lines.Add(1)
	if d.metrics != nil {
		d.metrics.LinesTotal.WithLabelValues(line.Stream).Inc()
	}

	code, ok := core.DetectStatus(line.Line)
	if !ok {
		return nil
	}
	if d.metrics != nil {
		d.metrics.DetectionsTotal.WithLabelValues(code.Class()).Inc()
	}
	if !d.filter.ShouldNotify(code) {
		return nil
	}
	d.detections.Add(1)

	detection := core.Detection{
		ID:       uuid.NewString(),
		Code:     code,
		SourceID: line.SourceID,
		Stream:   line.Stream,
		Line:     line.Line,
		TsUnixMs: line.TsUnixMs,
	}
	d.notify(ctx, detection)
	return nil
}

func (d *Dispatcher) emit(text string) error {
	if _, err := io.WriteString(d.echo, text+"\n"); err != nil {
		return err
	}
	if f, ok := d.echo.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func (d *Dispatcher) notify(ctx context.Context, detection core.Detection) {
	nctx, cancel := context.WithTimeout(ctx, d.notifyTimeout)
	defer cancel()

	err := d.notifier.Notify(nctx, detection)
	result := metrics.ResultSent
	switch {
	case err == nil:
		d.notifications.Add(1)
	case errors.Is(err, notify.ErrThrottled):
		d.throttled.Add(1)
		result = metrics.ResultThrottled
		d.logger.Debug("notification throttled", "code", int(detection.Code))
	default:
		d.failures.Add(1)
		result = metrics.ResultFailed
		d.logger.Warn("notification failed", "code", int(detection.Code), "err", err)
	}
	if d.metrics != nil {
		d.metrics.NotificationsTotal.WithLabelValues(result).Inc()
	}
}
