package notify

import (
	"context"
	"errors"

	"github.com/modoterra/catlog/pkg/core"
	"github.com/modoterra/catlog/pkg/transport/uds"
)

// Broadcaster delivers an event to every connected subscriber.
type Broadcaster interface {
	Broadcast(msg uds.Message)
}

// Broadcast publishes detections as status.detected events.
type Broadcast struct {
	to Broadcaster
}

func NewBroadcast(to Broadcaster) *Broadcast {
	return &Broadcast{to: to}
}

func (b *Broadcast) Notify(_ context.Context, d core.Detection) error {
	evt, err := uds.NewEvent(uds.EventStatusDetected, d)
	if err != nil {
		return errors.Join(err, core.ErrNotification)
	}
	b.to.Broadcast(evt)
	return nil
}
