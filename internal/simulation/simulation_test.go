package simulation

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/config"
	"beacon-trilateration/internal/logging"
	"beacon-trilateration/internal/observation"
	"beacon-trilateration/internal/trilateration"
)

type fixedVelocities struct {
	signal, object float64
}

func (v fixedVelocities) SignalVelocity() float64 { return v.signal }
func (v fixedVelocities) ObjectVelocity() float64 { return v.object }

var epoch = time.UnixMilli(1_700_000_000_000)

func newTestSimulation(v Velocities, opts ...Option) *Simulation {
	opts = append([]Option{
		WithRand(rand.New(rand.NewSource(1))),
		WithClock(func() time.Time { return epoch }),
	}, opts...)
	return New(DefaultBeacons, v, logging.Discard(), opts...)
}

func TestEmitInvertsDistance(t *testing.T) {
	b := NewBeacon(common.Point{X: -100, Y: 0})
	for _, sv := range []float64{120, 360, 1e6} {
		for _, d := range []float64{0, 1, 100, 424.26} {
			r := b.Emit(d, 1000, sv)
			assert.Equal(t, b.Position(), r.Beacon())
			assert.Equal(t, 1000.0, r.SentTime)
			assert.InDelta(t, d, observation.Distance(r, sv), 1e-9)
		}
	}
}

func TestBeaconIDsAreUnique(t *testing.T) {
	a := NewBeacon(common.Point{})
	b := NewBeacon(common.Point{})
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Contains(t, a.String(), a.ID())
}

func TestStepEmitsOneReadingPerBeaconInOrder(t *testing.T) {
	sim := newTestSimulation(fixedVelocities{signal: 120, object: 15}, WithStart(common.Point{X: 40, Y: -20}))

	readings := sim.Step(0.5)
	target := sim.Target()

	for i, r := range readings {
		assert.Equal(t, DefaultBeacons[i], r.Beacon())
		assert.Equal(t, float64(epoch.UnixMilli()), r.SentTime)
		assert.InDelta(t, DefaultBeacons[i].Distance(target), observation.Distance(r, 120), 1e-6)
	}
	assert.InDelta(t, 0.5, sim.Time(), 1e-12)
}

func TestTargetMovesAtObjectVelocity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	target := NewTarget(common.Point{}, rng)
	wide := Bounds{Min: -1e9, Max: 1e9}

	for i := 0; i < 20; i++ {
		before := target.Position()
		target.Update(0.5, 15, wide)
		assert.InDelta(t, 7.5, before.Distance(target.Position()), 1e-9)
	}
}

func TestTargetStaysWithinBounds(t *testing.T) {
	target := NewTarget(common.Point{X: 290, Y: -290}, rand.New(rand.NewSource(3)))
	bounds := Bounds{Min: -Area, Max: Area}

	for i := 0; i < 5000; i++ {
		target.Update(0.5, 400, bounds)
		p := target.Position()
		require.GreaterOrEqual(t, p.X, -Area)
		require.LessOrEqual(t, p.X, Area)
		require.GreaterOrEqual(t, p.Y, -Area)
		require.LessOrEqual(t, p.Y, Area)
	}
}

func TestStepReadsLiveSettings(t *testing.T) {
	rt := config.DefaultRuntime()
	sim := newTestSimulation(rt)

	first := sim.Step(0)
	rt.SetSignalVelocity(240)
	second := sim.Step(0)

	// Same geometry, twice the signal velocity: half the delay.
	for i := range first {
		d1 := first[i].ReceivedTime - first[i].SentTime
		d2 := second[i].ReceivedTime - second[i].SentTime
		assert.InDelta(t, d1/2, d2, 1e-3)
	}

	rt.SetObjectVelocity(0)
	before := sim.Target()
	sim.Step(1)
	assert.Equal(t, before, sim.Target())
}

func TestNoiseIsApplied(t *testing.T) {
	sim := newTestSimulation(fixedVelocities{signal: 3600, object: 0},
		WithNoise(func(d float64) float64 { return d + 5 }))

	for _, r := range sim.Step(1) {
		// Target at the origin is 100 from every default beacon.
		assert.InDelta(t, 105, observation.Distance(r, 3600), 1e-6)
	}

	clamped := newTestSimulation(fixedVelocities{signal: 3600, object: 0},
		WithNoise(func(float64) float64 { return -1 }))
	for _, r := range clamped.Step(1) {
		assert.Equal(t, r.SentTime, r.ReceivedTime)
	}
}

func TestGaussianNoise(t *testing.T) {
	assert.Equal(t, 10.0, GaussianNoise(nil, 0)(10))

	noise := GaussianNoise(rand.New(rand.NewSource(5)), 2)
	var sum float64
	const n = 2000
	for i := 0; i < n; i++ {
		sum += noise(100)
	}
	assert.InDelta(t, 100, sum/n, 0.5)
}

func TestSimulatedReadingsSolveToTarget(t *testing.T) {
	sim := newTestSimulation(fixedVelocities{signal: 120, object: 0})
	buf := observation.NewBuffer(fixedVelocities{signal: 120})

	var (
		batch observation.Batch
		ok    bool
	)
	for _, r := range sim.Step(0.5) {
		batch, ok = buf.Ingest(r)
	}
	require.True(t, ok)

	got := trilateration.Solve(batch)
	assert.InDelta(t, 0, got.X, 1e-6)
	assert.InDelta(t, 0, got.Y, 1e-6)
}

func TestRunEmitsUntilCancelled(t *testing.T) {
	sim := newTestSimulation(fixedVelocities{signal: 120, object: 15})

	var (
		mu    sync.Mutex
		ticks [][]observation.Reading
	)
	ctx, cancel := context.WithCancel(context.Background())
	emit := func(_ context.Context, readings []observation.Reading) error {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, readings)
		if len(ticks) == 1 {
			return errors.New("first tick fails")
		}
		if len(ticks) == 3 {
			cancel()
		}
		return nil
	}

	err := sim.Run(ctx, 5*time.Millisecond, emit)
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(ticks), 3)
	for _, tick := range ticks {
		assert.Len(t, tick, observation.BatchSize)
	}
}
