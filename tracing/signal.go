// Package tracing collects the values of device signals over time.
//
// A SignalSampler runs as a daemon task and reads every signal of a source at
// each settle point. It publishes each value as a Sample through its hooks.
// Hooks such as Registry and RecorderHook keep the raw values; binning and
// reporting are left to whoever reads them.
package tracing

import (
	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
)

// HookPosSignalSample is triggered once per signal per sampled cycle. The
// item is a Sample.
var HookPosSignalSample = &hooking.HookPos{Name: "SignalSample"}

// Signal is the value of a named signal.
type Signal struct {
	Name  string
	Value uint64
}

// A SignalSource lists the signal values visible at a settle point.
type SignalSource interface {
	Signals(s harness.Settled) []Signal
}

// Sample is the value of a signal at the settle point of a cycle.
type Sample struct {
	Signal string
	Cycle  uint64
	Time   timing.VTimeInSec
	Value  uint64
}

// TableName returns the table that samples are recorded into.
func (s Sample) TableName() string {
	return "signal_sample"
}

// Record returns the sample itself.
func (s Sample) Record() any {
	return s
}

// SignalSampler samples a SignalSource every cycle.
type SignalSampler struct {
	naming.NamedBase
	hooking.HookableBase

	source  SignalSource
	signals map[string]bool
}

// NewSignalSampler creates a sampler. If signals are given, only those are
// published.
func NewSignalSampler(
	name string,
	source SignalSource,
	signals ...string,
) *SignalSampler {
	s := &SignalSampler{
		NamedBase: naming.MakeNamedBase(name),
		source:    source,
	}

	if len(signals) > 0 {
		s.signals = make(map[string]bool)
		for _, sig := range signals {
			s.signals[sig] = true
		}
	}

	return s
}

// Run samples until the task is cancelled. It is meant to run as a daemon.
func (s *SignalSampler) Run(t *harness.Task) error {
	for {
		s.SampleOnce(t.Settle())
	}
}

// SampleOnce publishes the signal values of one settle point.
func (s *SignalSampler) SampleOnce(st harness.Settled) {
	if s.NumHooks() == 0 {
		return
	}

	for _, sig := range s.source.Signals(st) {
		if s.signals != nil && !s.signals[sig.Name] {
			continue
		}

		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosSignalSample,
			Item: Sample{
				Signal: sig.Name,
				Cycle:  st.Cycle(),
				Time:   st.Time(),
				Value:  sig.Value,
			},
		})
	}
}
