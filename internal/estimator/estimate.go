package estimator

import (
	"context"
	"errors"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/observation"
)

// Estimate is the result of one completed batch: the solved position and the
// three beacons in the order they were buffered. Position may be non-finite.
type Estimate struct {
	Seq      uint64
	Position common.Point
	Beacons  [observation.BatchSize]common.Point
	// Residual is the RMS range error of Position against the batch; NaN
	// when Position is not finite.
	Residual float64
	// LeastSquares is the QR least-squares fit of the same batch, kept for
	// comparison with Position. NaN when the fit is not possible.
	LeastSquares common.Point
}

// Finite reports whether the position is usable.
func (e Estimate) Finite() bool {
	return e.Position.IsFinite()
}

// Sink receives every estimate the estimator produces.
type Sink interface {
	Publish(ctx context.Context, est Estimate) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, est Estimate) error

func (f SinkFunc) Publish(ctx context.Context, est Estimate) error {
	return f(ctx, est)
}

// Sinks fans an estimate out to several sinks. Every sink is called even if
// an earlier one fails; the errors are joined.
type Sinks []Sink

func (s Sinks) Publish(ctx context.Context, est Estimate) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Publish(ctx, est); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
