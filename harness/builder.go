package harness

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
)

// SessionBuilder can build sessions.
type SessionBuilder struct {
	engine      timing.Engine
	domain      *clock.Domain
	bench       Bench
	log         logr.Logger
	resetEdges  int
	quietEdges  int
	drainBudget int
	maxCycles   uint64
}

// MakeSessionBuilder returns a SessionBuilder with the default parameters.
func MakeSessionBuilder() SessionBuilder {
	return SessionBuilder{
		log:         logr.Discard(),
		resetEdges:  2,
		quietEdges:  2,
		drainBudget: 1000,
	}
}

// WithEngine sets the engine that runs the clock.
func (b SessionBuilder) WithEngine(engine timing.Engine) SessionBuilder {
	b.engine = engine
	return b
}

// WithDomain sets the clock domain of the device.
func (b SessionBuilder) WithDomain(domain *clock.Domain) SessionBuilder {
	b.domain = domain
	return b
}

// WithBench sets the device-specific procedures.
func (b SessionBuilder) WithBench(bench Bench) SessionBuilder {
	b.bench = bench
	return b
}

// WithLogger sets the logger.
func (b SessionBuilder) WithLogger(log logr.Logger) SessionBuilder {
	b.log = log
	return b
}

// WithResetEdges sets how many edges the reset stays asserted. It cannot be
// less than 2.
func (b SessionBuilder) WithResetEdges(n int) SessionBuilder {
	b.resetEdges = n
	return b
}

// WithQuietEdges sets how many idle edges follow a teardown. It cannot be
// less than 2.
func (b SessionBuilder) WithQuietEdges(n int) SessionBuilder {
	b.quietEdges = n
	return b
}

// WithDrainBudget sets how many cycles a scenario may wait for its tasks
// after the body returns.
func (b SessionBuilder) WithDrainBudget(n int) SessionBuilder {
	b.drainBudget = n
	return b
}

// WithMaxCycles sets the cycle budget of a scenario. Zero means unlimited.
func (b SessionBuilder) WithMaxCycles(n uint64) SessionBuilder {
	b.maxCycles = n
	return b
}

// Build creates a new Session.
func (b SessionBuilder) Build(name string) *Session {
	if b.engine == nil || b.domain == nil || b.bench == nil {
		panic("session " + name + " requires an engine, a domain and a bench")
	}

	if b.resetEdges < 2 {
		panic("reset must be held for at least 2 edges")
	}

	if b.quietEdges < 2 {
		panic("teardown needs at least 2 quiet edges")
	}

	s := &Session{
		NamedBase:   naming.MakeNamedBase(name),
		engine:      b.engine,
		kernel:      NewKernel(b.domain, b.log),
		bench:       b.bench,
		log:         b.log.WithName("session"),
		resetEdges:  b.resetEdges,
		quietEdges:  b.quietEdges,
		drainBudget: b.drainBudget,
		maxCycles:   b.maxCycles,
	}

	return s
}
