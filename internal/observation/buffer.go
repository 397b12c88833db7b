package observation

// VelocitySource supplies the current signal velocity. *config.Runtime
// satisfies it.
type VelocitySource interface {
	SignalVelocity() float64
}

// Buffer accumulates observations until a batch of three is complete.
//
// Readings are not identified by beacon: three readings from the same beacon
// fill a batch like three distinct beacons would. A Buffer is not safe for
// concurrent use; one goroutine owns it.
type Buffer struct {
	velocity VelocitySource
	pending  [BatchSize]Observation
	n        int
}

// NewBuffer creates an empty buffer reading signal velocity from v.
func NewBuffer(v VelocitySource) *Buffer {
	return &Buffer{velocity: v}
}

// Ingest converts r into an observation and appends it. When the buffer then
// holds three observations it returns them and starts a new empty batch;
// otherwise ok is false.
func (b *Buffer) Ingest(r Reading) (batch Batch, ok bool) {
	b.pending[b.n] = Observation{
		Beacon:   r.Beacon(),
		Distance: Distance(r, b.velocity.SignalVelocity()),
	}
	b.n++

	if b.n < BatchSize {
		return Batch{}, false
	}

	batch = Batch(b.pending)
	b.Reset()
	return batch, true
}

// Pending returns the number of observations in the in-progress batch.
func (b *Buffer) Pending() int {
	return b.n
}

// Reset discards the in-progress batch.
func (b *Buffer) Reset() {
	b.pending = [BatchSize]Observation{}
	b.n = 0
}
