package clock

import (
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
)

// Builder can build clock domains.
type Builder struct {
	engine      timing.EventScheduler
	freq        timing.Freq
	phaseOffset timing.VTimeInSec
}

// MakeBuilder returns a Builder with a 1GHz clock and no phase offset.
func MakeBuilder() Builder {
	return Builder{
		freq: 1 * timing.GHz,
	}
}

// WithEngine sets the engine that the domain schedules its edges on.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the clock frequency.
func (b Builder) WithFreq(freq timing.Freq) Builder {
	b.freq = freq
	return b
}

// WithPhase sets the time of the first possible edge. Edges happen at
// phase + n * period.
func (b Builder) WithPhase(phase timing.VTimeInSec) Builder {
	b.phaseOffset = phase
	return b
}

// Build creates a new Domain.
func (b Builder) Build(name string) *Domain {
	if b.engine == nil {
		panic("clock domain " + name + " requires an engine")
	}

	if b.freq <= 0 {
		panic("clock domain " + name + " requires a positive frequency")
	}

	if b.phaseOffset < 0 {
		panic("clock domain " + name + " cannot have a negative phase")
	}

	d := &Domain{
		NamedBase:   naming.MakeNamedBase(name),
		engine:      b.engine,
		freq:        b.freq,
		phaseOffset: b.phaseOffset,
	}

	return d
}
