package notify

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/modoterra/catlog/pkg/core"
)

// ErrThrottled is returned when a detection is skipped by Throttle.
var ErrThrottled = errors.New("notification throttled")

// Throttle limits how often the wrapped notifier runs. Detections beyond the
// limit are skipped rather than queued, so a burst of errors in the log cannot
// pile up behind slow image fetches.
type Throttle struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewThrottle allows perSecond notifications with the given burst. A
// non-positive perSecond disables throttling.
func NewThrottle(next Notifier, perSecond float64, burst int) *Throttle {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttle) Notify(ctx context.Context, d core.Detection) error {
	if !t.limiter.Allow() {
		return ErrThrottled
	}
	return t.next.Notify(ctx, d)
}
