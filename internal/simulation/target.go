package simulation

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"beacon-trilateration/internal/common"
)

// turnRate bounds the random heading change, in radians per second.
const turnRate = 1.5

// Bounds is the square region the target moves in.
type Bounds struct {
	Min, Max float64
}

// Target is the tracked object. It random-walks at a given speed and bounces
// off the bounds.
type Target struct {
	id       string
	position common.Point
	heading  float64
	rng      *rand.Rand
}

// NewTarget creates a target at pos with a random heading.
func NewTarget(pos common.Point, rng *rand.Rand) *Target {
	return &Target{
		id:       fmt.Sprintf("target-%s", uuid.NewString()[:8]),
		position: pos,
		heading:  rng.Float64() * 2 * math.Pi,
		rng:      rng,
	}
}

// ID returns the unique identifier of the target.
func (t *Target) ID() string {
	return t.id
}

// Position returns the current position of the target.
func (t *Target) Position() common.Point {
	return t.position
}

// Update turns the heading randomly and moves speed*deltaTime along it,
// reflecting off the bounds.
func (t *Target) Update(deltaTime, speed float64, bounds Bounds) {
	t.heading += (t.rng.Float64()*2 - 1) * turnRate * deltaTime

	velocity := common.NewPoint(math.Cos(t.heading), math.Sin(t.heading)).MultiplyByScalar(speed)
	next := t.position.Add(velocity.MultiplyByScalar(deltaTime))

	if next.X < bounds.Min || next.X > bounds.Max {
		next.X = reflect(next.X, bounds)
		t.heading = math.Pi - t.heading
	}
	if next.Y < bounds.Min || next.Y > bounds.Max {
		next.Y = reflect(next.Y, bounds)
		t.heading = -t.heading
	}

	t.position = next
}

// reflect mirrors v back inside bounds, clamping when the overshoot exceeds
// the whole range.
func reflect(v float64, b Bounds) float64 {
	switch {
	case v < b.Min:
		v = b.Min + (b.Min - v)
	case v > b.Max:
		v = b.Max - (v - b.Max)
	}
	return math.Max(b.Min, math.Min(b.Max, v))
}

func (t *Target) String() string {
	return fmt.Sprintf("Target[%s] Pos: %s", t.id, t.position)
}
