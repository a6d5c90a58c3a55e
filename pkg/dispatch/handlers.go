package dispatch

import (
	"context"

	"github.com/modoterra/catlog/pkg/transport/uds"
)

// RegisterHandlers answers Ping and Stats requests on srv.
func (d *Dispatcher) RegisterHandlers(srv *uds.Server, sourceID string) {
	srv.Handle(uds.MethodPing, func(_ context.Context, _ uds.Message) (any, error) {
		return uds.PingResponse{Pong: true, SourceID: sourceID}, nil
	})
	srv.Handle(uds.MethodStats, func(_ context.Context, _ uds.Message) (any, error) {
		return d.Stats(), nil
	})
}
