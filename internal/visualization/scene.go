// Package visualization keeps the state a live viewer draws: the latest
// estimate received from the estimator and the fixed world-to-screen mapping.
package visualization

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/transport"
)

// Frame is one drawable snapshot of the scene.
type Frame struct {
	Have     bool
	Seq      uint64
	Object   common.Point
	Finite   bool
	Beacons  []common.Point
	Residual float64
	Received int
	Invalid  int
}

// Scene holds the latest estimate. It is updated from the stream goroutine
// and read from the draw loop.
type Scene struct {
	mu       sync.RWMutex
	frame    Frame
	received int
	invalid  int
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{}
}

// Apply replaces the current estimate with msg.
func (s *Scene) Apply(msg transport.EstimateMessage) {
	beacons := make([]common.Point, 0, len(msg.Beacons))
	for _, b := range msg.Beacons {
		beacons = append(beacons, b.Point())
	}
	residual := math.NaN()
	if msg.Residual != nil {
		residual = *msg.Residual
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.received++
	if !msg.Finite {
		s.invalid++
	}
	s.frame = Frame{
		Have:     true,
		Seq:      msg.Seq,
		Object:   msg.Object.Point(),
		Finite:   msg.Finite,
		Beacons:  beacons,
		Residual: residual,
		Received: s.received,
		Invalid:  s.invalid,
	}
}

// Frame returns the current snapshot.
func (s *Scene) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.frame
	f.Beacons = append([]common.Point(nil), f.Beacons...)
	return f
}

// Consume applies messages from in until ctx is done or in is closed.
func (s *Scene) Consume(ctx context.Context, in <-chan transport.EstimateMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			s.Apply(msg)
		}
	}
}

// Status is the overlay text for f.
func (f Frame) Status() string {
	if !f.Have {
		return "Waiting for estimates..."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Estimate #%d\n", f.Seq)
	if f.Finite {
		fmt.Fprintf(&sb, "Object: %s\n", f.Object)
		fmt.Fprintf(&sb, "Residual: %.3f\n", f.Residual)
	} else {
		sb.WriteString("Object: no finite solution\n")
	}
	fmt.Fprintf(&sb, "Received: %d (non-finite: %d)", f.Received, f.Invalid)
	return sb.String()
}

// Transform maps world coordinates in [-limit, limit] on both axes to a
// screen of the given size. Screen Y grows downward.
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// FitAxes centres the square [-limit, limit]² on the screen, keeping aspect
// ratio and leaving padding pixels on the tighter side.
func FitAxes(width, height int, limit, padding float64) Transform {
	usable := math.Min(float64(width), float64(height)) - 2*padding
	scale := usable / (2 * limit)
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		scale = 1
	}
	return Transform{
		Scale:   scale,
		OffsetX: float64(width) / 2,
		OffsetY: float64(height) / 2,
	}
}

// ToScreen converts a world point to screen coordinates.
func (t Transform) ToScreen(p common.Point) (float32, float32) {
	return float32(p.X*t.Scale + t.OffsetX), float32(-p.Y*t.Scale + t.OffsetY)
}

// Visible reports whether p falls inside the axis range.
func Visible(p common.Point, limit float64) bool {
	return p.IsFinite() && math.Abs(p.X) <= limit && math.Abs(p.Y) <= limit
}
