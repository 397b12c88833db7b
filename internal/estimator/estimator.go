// Package estimator drives the reading -> batch -> position pipeline.
//
// One goroutine owns the observation buffer. Each reading is fully handled
// (distance derived, appended, and when a batch completes, solved and
// published) before the next one is taken, so estimates follow arrival order.
package estimator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/observation"
	"beacon-trilateration/internal/trilateration"
)

// Recorder receives pipeline measurements. *metrics.Collector satisfies it.
type Recorder interface {
	ObserveReading()
	ObserveEstimate(finite bool, solve time.Duration)
	SetPending(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReading()                     {}
func (nopRecorder) ObserveEstimate(bool, time.Duration) {}
func (nopRecorder) SetPending(int)                      {}

// Estimator turns readings into published estimates.
type Estimator struct {
	buffer   *observation.Buffer
	sink     Sink
	recorder Recorder
	logger   *slog.Logger
	seq      uint64
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Estimator) {
		if r != nil {
			e.recorder = r
		}
	}
}

// New creates an estimator that derives distances with the signal velocity
// from v and publishes to sink.
func New(v observation.VelocitySource, sink Sink, logger *slog.Logger, opts ...Option) *Estimator {
	e := &Estimator{
		buffer:   observation.NewBuffer(v),
		sink:     sink,
		recorder: nopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes readings from in until ctx is cancelled or in is closed.
// The in-progress batch is discarded on return.
func (e *Estimator) Run(ctx context.Context, in <-chan observation.Reading) error {
	defer e.buffer.Reset()
	e.logger.Info("estimator started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("estimator stopped", "discarded", e.buffer.Pending())
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				e.logger.Info("reading stream closed", "discarded", e.buffer.Pending())
				return nil
			}
			e.Process(ctx, r)
		}
	}
}

// Process handles one reading. When it completes a batch the estimate is
// published and returned.
func (e *Estimator) Process(ctx context.Context, r observation.Reading) (Estimate, bool) {
	e.recorder.ObserveReading()

	batch, ready := e.buffer.Ingest(r)
	e.recorder.SetPending(e.buffer.Pending())
	if !ready {
		return Estimate{}, false
	}

	pos, took := trilateration.Timed(batch)
	e.seq++
	est := Estimate{
		Seq:          e.seq,
		Position:     pos,
		Beacons:      batch.Beacons(),
		Residual:     trilateration.Residual(batch, pos),
		LeastSquares: leastSquares(batch),
	}
	e.recorder.ObserveEstimate(est.Finite(), took)

	if !est.Finite() {
		// Formatted as strings: the JSON handler cannot encode NaN or Inf.
		e.logger.Warn("non-finite position estimate",
			"seq", est.Seq,
			"position", pos.String(),
			"beacons", fmt.Sprint(est.Beacons),
			"least_squares", est.LeastSquares.String(),
		)
	} else {
		e.logger.Debug("position estimate",
			"seq", est.Seq,
			"x", pos.X,
			"y", pos.Y,
			"residual", est.Residual,
			"least_squares", est.LeastSquares.String(),
		)
	}

	if err := e.sink.Publish(ctx, est); err != nil {
		e.logger.Warn("failed to publish estimate", "seq", est.Seq, "error", err)
	}
	return est, true
}

// leastSquares returns the QR fit of batch, or NaN coordinates when the batch
// is degenerate or not finite.
func leastSquares(batch observation.Batch) common.Point {
	sol, err := trilateration.SolveLeastSquares(batch)
	if err != nil {
		return common.Point{X: math.NaN(), Y: math.NaN()}
	}
	return sol.Position
}

// Pending returns the number of buffered observations.
func (e *Estimator) Pending() int {
	return e.buffer.Pending()
}
