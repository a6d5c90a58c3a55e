// Package notify reacts to detected status codes: banners, http.cat pictures
// and socket broadcasts.
package notify

import (
	"context"
	"errors"

	"github.com/modoterra/catlog/pkg/core"
)

// Notifier is invoked for every detection that passes the filter.
type Notifier interface {
	Notify(ctx context.Context, d core.Detection) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, d core.Detection) error

func (f Func) Notify(ctx context.Context, d core.Detection) error {
	return f(ctx, d)
}

// Chain runs every notifier in order. A failing notifier does not stop the
// ones after it; all errors are joined.
type Chain []Notifier

func (c Chain) Notify(ctx context.Context, d core.Detection) error {
	var errs []error
	for _, n := range c {
		if err := n.Notify(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every detection.
var Nop = Func(func(context.Context, core.Detection) error { return nil })
