// Package observation turns a stream of beacon readings into batches of three
// (beacon position, distance) pairs ready for trilateration.
package observation

import (
	"beacon-trilateration/internal/common"
)

// BatchSize is the number of observations consumed by one solve.
const BatchSize = 3

// Reading is one beacon transmission as delivered by the transport.
// Timestamps are milliseconds on a shared clock.
type Reading struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	SentTime     float64 `json:"sentTime"`
	ReceivedTime float64 `json:"receivedTime"`
}

// Beacon returns the position of the transmitting beacon.
func (r Reading) Beacon() common.Point {
	return common.Point{X: r.X, Y: r.Y}
}

// Distance derives the beacon range from the signal delay. signalVelocity is
// in distance units per hour. A negative delay yields a negative distance.
func Distance(r Reading, signalVelocity float64) float64 {
	signalDelay := (r.ReceivedTime - r.SentTime) / 1000
	return (signalVelocity / 3600) * signalDelay
}

// Observation is a beacon position paired with its derived distance.
type Observation struct {
	Beacon   common.Point `json:"beacon"`
	Distance float64      `json:"distance"`
}

// Batch is three observations in arrival order. The solver is asymmetric in
// the order, so it must not be rearranged.
type Batch [BatchSize]Observation

// Beacons returns the beacon positions in batch order.
func (b Batch) Beacons() [BatchSize]common.Point {
	var out [BatchSize]common.Point
	for i, o := range b {
		out[i] = o.Beacon
	}
	return out
}
