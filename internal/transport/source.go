// Package transport moves readings into the estimator and estimates out of
// it. Connection loss and reconnection are handled here; the estimator only
// ever sees individual readings.
package transport

import (
	"context"
	"errors"

	"beacon-trilateration/internal/observation"
)

// ErrClosed is returned by Run when the source ends without cancellation.
var ErrClosed = errors.New("reading source closed")

// Source delivers readings in arrival order until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, out chan<- observation.Reading) error
}

// ReconnectCounter is notified when a source re-establishes its stream.
// *metrics.Collector satisfies it.
type ReconnectCounter interface {
	IncReconnects()
}

type nopCounter struct{}

func (nopCounter) IncReconnects() {}

// deliver blocks until r is accepted or ctx is done.
func deliver(ctx context.Context, out chan<- observation.Reading, r observation.Reading) error {
	select {
	case out <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
