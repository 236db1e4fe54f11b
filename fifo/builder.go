package fifo

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
	"github.com/sarchlab/hwconform/tracing"
)

// Builder can build testbenches.
type Builder struct {
	engine      timing.Engine
	domain      *clock.Domain
	device      Device
	log         logr.Logger
	seed        int64
	resetEdges  int
	quietEdges  int
	drainBudget int
	waitBudget  int
	maxCycles   uint64
}

// MakeBuilder returns a Builder with the default parameters.
func MakeBuilder() Builder {
	return Builder{
		log:         logr.Discard(),
		seed:        1,
		resetEdges:  2,
		quietEdges:  2,
		drainBudget: 1000,
		waitBudget:  100,
		maxCycles:   100000,
	}
}

// WithEngine sets the engine that runs the clock.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithDomain sets the clock domain that the device is registered on.
func (b Builder) WithDomain(domain *clock.Domain) Builder {
	b.domain = domain
	return b
}

// WithDevice sets the device under test.
func (b Builder) WithDevice(device Device) Builder {
	b.device = device
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(log logr.Logger) Builder {
	b.log = log
	return b
}

// WithSeed sets the seed of the random stimulus.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithResetEdges sets how many edges the reset stays asserted.
func (b Builder) WithResetEdges(n int) Builder {
	b.resetEdges = n
	return b
}

// WithQuietEdges sets how many idle edges follow every scenario.
func (b Builder) WithQuietEdges(n int) Builder {
	b.quietEdges = n
	return b
}

// WithDrainBudget sets how many cycles a scenario may wait for its tasks.
func (b Builder) WithDrainBudget(n int) Builder {
	b.drainBudget = n
	return b
}

// WithWaitBudget sets how many cycles WaitForFlag waits.
func (b Builder) WithWaitBudget(n int) Builder {
	b.waitBudget = n
	return b
}

// WithMaxCycles sets the cycle budget of every scenario. Zero means
// unlimited.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

// Build creates a testbench. The device parameters are read here, once.
func (b Builder) Build(name string) *Testbench {
	if b.device == nil {
		panic("testbench " + name + " requires a device")
	}

	params := b.device.Params()
	if err := params.Validate(); err != nil {
		panic(err)
	}

	log := b.log.WithName(name)

	tb := &Testbench{
		NamedBase:  naming.MakeNamedBase(name),
		adapter:    NewAdapter(b.device),
		waitBudget: b.waitBudget,
		log:        log,
	}

	tb.session = harness.MakeSessionBuilder().
		WithEngine(b.engine).
		WithDomain(b.domain).
		WithBench(tb).
		WithLogger(log).
		WithResetEdges(b.resetEdges).
		WithQuietEdges(b.quietEdges).
		WithDrainBudget(b.drainBudget).
		WithMaxCycles(b.maxCycles).
		Build(naming.Child(name, "Session"))

	tb.ref = NewReferenceQueue(params, tb.session.Kernel())

	tb.driver = NewDriver(naming.Child(name, "Driver"),
		tb.adapter, tb.ref, b.seed, log)
	tb.driver.SetStimulusMarker(tb.session)

	tb.scoreboard = NewScoreboard(naming.Child(name, "Scoreboard"),
		tb.adapter, tb.ref, log)

	tb.sampler = tracing.NewSignalSampler(naming.Child(name, "Sampler"),
		tb.adapter)

	if events := log.V(3); events.Enabled() {
		b.engine.AcceptHook(timing.NewEventLogger(events.WithName("Engine")))
	}

	log.Info("fifo parameters", "params", params.String())

	return tb
}
