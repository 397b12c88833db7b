// Package simulation drives three fixed beacons and a moving target, turning
// each tick into the readings a real beacon network would deliver.
package simulation

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/observation"
)

// Area is the half-width of the square the target moves in.
const Area = 300.0

// DefaultBeacons is the beacon layout in emission order.
var DefaultBeacons = [observation.BatchSize]common.Point{
	{X: 0, Y: 100},
	{X: -100, Y: 0},
	{X: 100, Y: 0},
}

// Velocities supplies the live settings. *config.Runtime satisfies it.
type Velocities interface {
	SignalVelocity() float64
	ObjectVelocity() float64
}

// Emitter receives the readings of one tick, in beacon order.
type Emitter func(ctx context.Context, readings []observation.Reading) error

// Simulation holds the beacons, the target and the simulation clock.
type Simulation struct {
	mu             sync.Mutex
	beacons        [observation.BatchSize]*Beacon
	target         *Target
	bounds         Bounds
	velocities     Velocities
	noise          NoiseFunction
	rng            *rand.Rand
	start          common.Point
	now            func() time.Time
	simulationTime float64
	logger         *slog.Logger
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithNoise perturbs every range before it is encoded.
func WithNoise(noise NoiseFunction) Option {
	return func(s *Simulation) { s.noise = noise }
}

// WithRand sets the random source for the target walk.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) { s.rng = rng }
}

// WithClock sets the wall clock used for sentTime.
func WithClock(now func() time.Time) Option {
	return func(s *Simulation) { s.now = now }
}

// WithStart places the target at p instead of the origin.
func WithStart(p common.Point) Option {
	return func(s *Simulation) { s.start = p }
}

// New creates a simulation with beacons at the given positions.
func New(beacons [observation.BatchSize]common.Point, velocities Velocities, logger *slog.Logger, opts ...Option) *Simulation {
	s := &Simulation{
		bounds:     Bounds{Min: -Area, Max: Area},
		velocities: velocities,
		noise:      NoNoise,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	for i, pos := range beacons {
		s.beacons[i] = NewBeacon(pos)
	}
	s.target = NewTarget(s.start, s.rng)
	return s
}

// Beacons returns the beacon positions in emission order.
func (s *Simulation) Beacons() [observation.BatchSize]common.Point {
	var out [observation.BatchSize]common.Point
	for i, b := range s.beacons {
		out[i] = b.Position()
	}
	return out
}

// Target returns the true target position.
func (s *Simulation) Target() common.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target.Position()
}

// Time returns the total simulated time in seconds.
func (s *Simulation) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulationTime
}

// Step advances the target by deltaTime seconds at the current object
// velocity and returns one reading per beacon. Settings are read once per
// step so the three readings agree.
func (s *Simulation) Step(deltaTime float64) [observation.BatchSize]observation.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.simulationTime += deltaTime
	s.target.Update(deltaTime, s.velocities.ObjectVelocity(), s.bounds)

	target := s.target.Position()
	signalVelocity := s.velocities.SignalVelocity()
	sent := float64(s.now().UnixMilli())

	var readings [observation.BatchSize]observation.Reading
	for i, b := range s.beacons {
		dist := s.noise(b.Position().Distance(target))
		if dist < 0 {
			dist = 0
		}
		readings[i] = b.Emit(dist, sent, signalVelocity)
	}
	return readings
}

// Run steps the simulation every interval and hands the readings to emit
// until ctx is cancelled. Emit errors are logged and the loop continues.
func (s *Simulation) Run(ctx context.Context, interval time.Duration, emit Emitter) error {
	s.logger.Info("beacon simulation started",
		"interval", interval,
		"beacons", len(s.beacons),
		"target", s.target.ID(),
	)
	for _, b := range s.beacons {
		s.logger.Debug("beacon placed", "beacon", b.String())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("beacon simulation stopped", "simulation_time", s.Time())
			return ctx.Err()
		case <-ticker.C:
			readings := s.Step(interval.Seconds())
			s.logger.Debug("tick", "target", s.Target().String())
			if err := emit(ctx, readings[:]); err != nil {
				s.logger.Warn("failed to emit readings", "error", err)
			}
		}
	}
}
