// Package clock provides clock domains, the periodic rising-edge sources that
// devices and testbench kernels synchronize to.
//
// Every cycle of a Domain has two points. At the rising edge, registered
// devices latch the inputs that were driven during the previous cycle, and
// listeners are told that the drive phase begins. At the settle point, which
// is a secondary event at the same time, devices evaluate their
// combinational outputs and listeners are told that outputs can be sampled.
package clock

import (
	"log"
	"reflect"
	"sync/atomic"

	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
)

// Phase tells which point of a cycle a Domain is at.
type Phase int

// The phases of a cycle.
const (
	PhaseIdle Phase = iota
	PhaseEdge
	PhaseSettle
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEdge:
		return "edge"
	case PhaseSettle:
		return "settle"
	default:
		return "unknown"
	}
}

// A Device is a piece of clocked hardware.
type Device interface {
	// RisingEdge latches the inputs driven during the previous cycle.
	RisingEdge(now timing.VTimeInSec)

	// Settle evaluates the combinational outputs.
	Settle(now timing.VTimeInSec)
}

// A Listener is notified after the devices have handled each point of a
// cycle.
type Listener interface {
	OnEdge(d *Domain)
	OnSettle(d *Domain)

	// Active tells if the listener still needs more cycles. The clock stops
	// once no listener is active.
	Active() bool
}

// HookPosEdge marks a rising edge, after the devices have latched. The item
// is the cycle number.
var HookPosEdge = &hooking.HookPos{Name: "ClockEdge"}

// HookPosSettle marks a settle point, after the devices have evaluated. The
// item is the cycle number.
var HookPosSettle = &hooking.HookPos{Name: "ClockSettle"}

// EdgeEvent is a rising edge.
type EdgeEvent struct {
	*timing.EventBase
}

// SettleEvent is the settle point that follows a rising edge.
type SettleEvent struct {
	*timing.EventBase
}

// Domain is a clock domain.
type Domain struct {
	naming.NamedBase
	hooking.HookableBase

	engine      timing.EventScheduler
	freq        timing.Freq
	phaseOffset timing.VTimeInSec

	devices   []Device
	listeners []Listener

	cycle         atomic.Uint64
	phase         Phase
	edgeScheduled bool
	gated         bool
}

// RegisterDevice adds a device to the domain. Devices handle each edge and
// settle point in registration order.
func (d *Domain) RegisterDevice(dev Device) {
	d.devices = append(d.devices, dev)
}

// RegisterListener adds a listener to the domain.
func (d *Domain) RegisterListener(l Listener) {
	d.listeners = append(d.listeners, l)
}

// Gate stops the clock at the devices. Cycles keep counting and listeners
// keep being notified, but devices do not latch until Ungate is called.
// Combinational outputs still settle.
func (d *Domain) Gate() {
	d.gated = true
}

// Ungate lets the devices latch again from the next rising edge on.
func (d *Domain) Ungate() {
	d.gated = false
}

// Gated tells if the clock is gated.
func (d *Domain) Gated() bool {
	return d.gated
}

// Freq returns the frequency of the domain.
func (d *Domain) Freq() timing.Freq {
	return d.freq
}

// Period returns the clock period.
func (d *Domain) Period() timing.VTimeInSec {
	return d.freq.Period()
}

// Cycle returns the number of rising edges that have happened.
func (d *Domain) Cycle() uint64 {
	return d.cycle.Load()
}

// Phase returns the point of the current cycle the domain is at.
func (d *Domain) Phase() Phase {
	return d.phase
}

// Now returns the current simulated time.
func (d *Domain) Now() timing.VTimeInSec {
	return d.engine.CurrentTime()
}

// Running tells if another edge is scheduled or in progress.
func (d *Domain) Running() bool {
	return d.edgeScheduled
}

// Wake schedules the next rising edge if the clock is stopped.
func (d *Domain) Wake() {
	if d.edgeScheduled {
		return
	}

	d.edgeScheduled = true
	t := d.nextEdgeTime(d.engine.CurrentTime())
	d.engine.Schedule(EdgeEvent{timing.NewEventBase(t, d)})
}

func (d *Domain) nextEdgeTime(now timing.VTimeInSec) timing.VTimeInSec {
	if now < d.phaseOffset {
		return d.phaseOffset
	}

	return d.phaseOffset + d.freq.NextTick(now-d.phaseOffset)
}

// Handle handles edge and settle events.
func (d *Domain) Handle(e timing.Event) error {
	switch e.(type) {
	case EdgeEvent:
		d.edge(e.Time())
	case SettleEvent:
		d.settle(e.Time())
	default:
		log.Panicf("clock domain %s cannot handle %s",
			d.Name(), reflect.TypeOf(e))
	}

	return nil
}

func (d *Domain) edge(now timing.VTimeInSec) {
	cycle := d.cycle.Add(1)
	d.phase = PhaseEdge

	if !d.gated {
		for _, dev := range d.devices {
			dev.RisingEdge(now)
		}
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosEdge,
		Item:   cycle,
	})

	d.engine.Schedule(SettleEvent{timing.NewSecondaryEventBase(now, d)})

	for _, l := range d.listeners {
		l.OnEdge(d)
	}
}

func (d *Domain) settle(now timing.VTimeInSec) {
	d.phase = PhaseSettle

	for _, dev := range d.devices {
		dev.Settle(now)
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosSettle,
		Item:   d.cycle.Load(),
	})

	for _, l := range d.listeners {
		l.OnSettle(d)
	}

	d.edgeScheduled = false
	d.phase = PhaseIdle

	if d.anyListenerActive() {
		d.Wake()
	}
}

func (d *Domain) anyListenerActive() bool {
	for _, l := range d.listeners {
		if l.Active() {
			return true
		}
	}

	return false
}
