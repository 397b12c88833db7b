package simulation

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/observation"
)

// NoiseFunction defines a function signature for adding noise to ranges.
// It takes the true distance and returns the noisy distance.
type NoiseFunction func(trueDistance float64) float64

// Beacon is a fixed transmitter. Every tick it sends one reading whose delay
// encodes its range to the target.
type Beacon struct {
	id       string
	position common.Point
}

// NewBeacon creates a beacon at pos.
func NewBeacon(pos common.Point) *Beacon {
	return &Beacon{
		id:       fmt.Sprintf("beacon-%s", uuid.NewString()[:8]),
		position: pos,
	}
}

// ID returns the unique identifier of the beacon.
func (b *Beacon) ID() string {
	return b.id
}

// Position returns the position of the beacon.
func (b *Beacon) Position() common.Point {
	return b.position
}

// Emit builds the reading the beacon sends at sentTime (milliseconds) for a
// target at the given range. The delay is the inverse of observation.Distance
// at signalVelocity (distance units per hour).
func (b *Beacon) Emit(distance, sentTime, signalVelocity float64) observation.Reading {
	delayMillis := distance / (signalVelocity / 3600) * 1000
	return observation.Reading{
		X:            b.position.X,
		Y:            b.position.Y,
		SentTime:     sentTime,
		ReceivedTime: sentTime + delayMillis,
	}
}

func (b *Beacon) String() string {
	return fmt.Sprintf("Beacon[%s] Pos: %s", b.id, b.position)
}

// NoNoise is a NoiseFunction that adds no noise.
func NoNoise(trueDistance float64) float64 {
	return trueDistance
}

// GaussianNoise creates a NoiseFunction that adds Gaussian (normal) noise.
func GaussianNoise(rng *rand.Rand, stdDev float64) NoiseFunction {
	if stdDev <= 0 {
		return NoNoise
	}
	return func(trueDistance float64) float64 {
		return trueDistance + rng.NormFloat64()*stdDev
	}
}
