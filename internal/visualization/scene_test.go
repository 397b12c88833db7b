package visualization

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/estimator"
	"beacon-trilateration/internal/transport"
)

func message(seq uint64, pos common.Point, residual float64) transport.EstimateMessage {
	return transport.NewEstimateMessage(estimator.Estimate{
		Seq:      seq,
		Position: pos,
		Beacons:  [3]common.Point{{X: 0, Y: 100}, {X: -100, Y: 0}, {X: 100, Y: 0}},
		Residual: residual,
	})
}

func TestSceneApply(t *testing.T) {
	s := NewScene()
	assert.False(t, s.Frame().Have)
	assert.Equal(t, "Waiting for estimates...", s.Frame().Status())

	s.Apply(message(1, common.Point{X: 12, Y: -3}, 0.25))
	f := s.Frame()
	require.True(t, f.Have)
	assert.True(t, f.Finite)
	assert.Equal(t, common.Point{X: 12, Y: -3}, f.Object)
	assert.Equal(t, []common.Point{{X: 0, Y: 100}, {X: -100, Y: 0}, {X: 100, Y: 0}}, f.Beacons)
	assert.Equal(t, 0.25, f.Residual)
	assert.Contains(t, f.Status(), "Estimate #1")
	assert.Contains(t, f.Status(), "[12.000, -3.000]")

	s.Apply(message(2, common.Point{X: math.NaN(), Y: math.NaN()}, math.NaN()))
	f = s.Frame()
	assert.False(t, f.Finite)
	assert.True(t, math.IsNaN(f.Object.X))
	assert.True(t, math.IsNaN(f.Residual))
	assert.Equal(t, 2, f.Received)
	assert.Equal(t, 1, f.Invalid)
	assert.Contains(t, f.Status(), "no finite solution")
}

func TestFrameIsACopy(t *testing.T) {
	s := NewScene()
	s.Apply(message(1, common.Point{}, 0))

	f := s.Frame()
	f.Beacons[0] = common.Point{X: 999, Y: 999}
	assert.Equal(t, common.Point{X: 0, Y: 100}, s.Frame().Beacons[0])
}

func TestSceneConsume(t *testing.T) {
	s := NewScene()
	in := make(chan transport.EstimateMessage, 3)
	in <- message(1, common.Point{X: 1}, 0)
	in <- message(2, common.Point{X: 2}, 0)
	in <- message(3, common.Point{X: 3}, 0)
	close(in)

	s.Consume(context.Background(), in)
	f := s.Frame()
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, 3, f.Received)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Consume(ctx, make(chan transport.EstimateMessage))
}

func TestFitAxes(t *testing.T) {
	tr := FitAxes(800, 700, 300, 50)
	assert.InDelta(t, 1.0, tr.Scale, 1e-12)

	x, y := tr.ToScreen(common.Point{})
	assert.Equal(t, float32(400), x)
	assert.Equal(t, float32(350), y)

	// Positive Y is up on screen.
	x, y = tr.ToScreen(common.Point{X: 300, Y: 300})
	assert.Equal(t, float32(700), x)
	assert.Equal(t, float32(50), y)

	assert.Equal(t, 1.0, FitAxes(0, 0, 300, 50).Scale)
}

func TestVisible(t *testing.T) {
	assert.True(t, Visible(common.Point{X: 300, Y: -300}, 300))
	assert.False(t, Visible(common.Point{X: 301, Y: 0}, 300))
	assert.False(t, Visible(common.Point{X: math.Inf(1), Y: 0}, 300))
}
