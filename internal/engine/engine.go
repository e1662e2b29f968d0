package engine

import (
	"context"

	"kafkasplit/internal/transport"
)

type Engine struct {
	transport *transport.Server
}

// Run serves until ctx is done, then drains in-flight streams.
func (e *Engine) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		e.transport.Stop()
	}()

	return e.transport.Serve()
}
