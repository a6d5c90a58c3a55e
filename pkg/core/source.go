package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind represents where a stream of lines originates.
type Kind string

const (
	KindStdin Kind = "stdin"
	KindFile  Kind = "file"
	KindExec  Kind = "exec"
)

var (
	ErrSourceIO     = errors.New("source read failed")
	ErrProcessSpawn = errors.New("failed to start process")
	ErrNotification = errors.New("notification failed")
	ErrClosed       = errors.New("source closed")
)

// LineSource produces the lines of exactly one input, in order.
//
// Next returns io.EOF once a finite source is exhausted, ctx.Err() when ctx is
// cancelled, and an error wrapping ErrSourceIO when the underlying resource
// fails. A source is not restartable; once Next has returned an error or Close
// has been called, a new instance must be constructed.
type LineSource interface {
	Next(ctx context.Context) (LogLine, error)
	Close() error
}

// SourceID constructs a source ID from its components.
// Format: kind:provider:native_id
func SourceID(kind Kind, provider, nativeID string) string {
	return fmt.Sprintf("%s:%s:%s", kind, provider, nativeID)
}

// ParseSourceID splits a source ID into kind, provider, and native_id.
func ParseSourceID(id string) (kind Kind, provider, nativeID string, err error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid source ID %q: expected kind:provider:native_id", id)
	}
	return Kind(parts[0]), parts[1], parts[2], nil
}
