package config

import (
	"math"
	"sync/atomic"
)

const (
	// DefaultSignalVelocity is the beacon broadcast velocity in distance units per hour.
	DefaultSignalVelocity = 120
	// DefaultObjectVelocity is the tracked object's velocity in distance units
	// per second, as the simulator moves it.
	DefaultObjectVelocity = 15
)

// Settings is a snapshot of the runtime parameters.
type Settings struct {
	SignalVelocity float64 `json:"signalVelocity"`
	ObjectVelocity float64 `json:"objectVelocity"`
}

// Runtime holds the runtime parameters that the settings endpoint may change
// while readings are being processed. Each field is loaded and stored
// atomically on its own; the two fields are never combined in one computation.
//
// ObjectVelocity is not read by the estimator. It is kept for the simulator
// and the renderers.
type Runtime struct {
	signalVelocity atomic.Uint64
	objectVelocity atomic.Uint64
}

// NewRuntime returns runtime parameters initialised to s.
func NewRuntime(s Settings) *Runtime {
	r := &Runtime{}
	r.SetSignalVelocity(s.SignalVelocity)
	r.SetObjectVelocity(s.ObjectVelocity)
	return r
}

// DefaultRuntime returns runtime parameters at 120 / 15.
func DefaultRuntime() *Runtime {
	return NewRuntime(Settings{
		SignalVelocity: DefaultSignalVelocity,
		ObjectVelocity: DefaultObjectVelocity,
	})
}

// SignalVelocity returns the beacon broadcast velocity in distance units per
// hour.
func (r *Runtime) SignalVelocity() float64 {
	return math.Float64frombits(r.signalVelocity.Load())
}

// SetSignalVelocity stores v. Readings processed afterwards use it.
func (r *Runtime) SetSignalVelocity(v float64) {
	r.signalVelocity.Store(math.Float64bits(v))
}

// ObjectVelocity returns the tracked object's velocity in distance units per
// second.
func (r *Runtime) ObjectVelocity() float64 {
	return math.Float64frombits(r.objectVelocity.Load())
}

// SetObjectVelocity stores v.
func (r *Runtime) SetObjectVelocity(v float64) {
	r.objectVelocity.Store(math.Float64bits(v))
}

// Snapshot returns both parameters. The pair is not read transactionally.
func (r *Runtime) Snapshot() Settings {
	return Settings{
		SignalVelocity: r.SignalVelocity(),
		ObjectVelocity: r.ObjectVelocity(),
	}
}
