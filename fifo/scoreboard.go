package fifo

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
)

// HookPosDrain is triggered for every drain the scoreboard observes. The item
// is a DrainRecord.
var HookPosDrain = &hooking.HookPos{Name: "Drain"}

// DrainRecord is one observed drain.
type DrainRecord struct {
	Cycle    uint64
	Time     timing.VTimeInSec
	Expected uint64
	Actual   uint64
}

// Match tells if the drained word was the expected one.
func (r DrainRecord) Match() bool {
	return r.Expected == r.Actual
}

// TableName returns the table that drains are recorded into.
func (r DrainRecord) TableName() string {
	return "drain"
}

// Record returns the record itself.
func (r DrainRecord) Record() any {
	return r
}

// Scoreboard compares the device outputs with the reference queue at every
// settle point. It fails on the first divergence.
type Scoreboard struct {
	naming.NamedBase
	hooking.HookableBase

	adapter *Adapter
	ref     DrainObserver
	params  Params
	log     logr.Logger

	drains  []DrainRecord
	checked uint64

	prevWriteForced bool
	prevReadForced  bool
}

// NewScoreboard creates a scoreboard.
func NewScoreboard(
	name string,
	adapter *Adapter,
	ref DrainObserver,
	log logr.Logger,
) *Scoreboard {
	return &Scoreboard{
		NamedBase: naming.MakeNamedBase(name),
		adapter:   adapter,
		ref:       ref,
		params:    adapter.Params(),
		log:       log.WithName("scoreboard"),
	}
}

// Run checks every cycle until a check fails or the task is cancelled. It
// is meant to run as a daemon.
func (sb *Scoreboard) Run(t *harness.Task) error {
	sb.Restart()

	for {
		s := t.Settle()

		if err := sb.Check(sb.adapter.Sample(s)); err != nil {
			return err
		}
	}
}

// Restart forgets the drains and the history of earlier cycles.
func (sb *Scoreboard) Restart() {
	sb.drains = nil
	sb.checked = 0
	sb.prevWriteForced = false
	sb.prevReadForced = false
}

// Drains returns the drains observed since the last restart.
func (sb *Scoreboard) Drains() []DrainRecord {
	return sb.drains
}

// Checked returns how many cycles passed every check since the last
// restart.
func (sb *Scoreboard) Checked() uint64 {
	return sb.checked
}

// Check verifies one settled sample. Cycles with the reset asserted are not
// checked.
func (sb *Scoreboard) Check(s Sample) error {
	if !s.ResetN {
		sb.prevWriteForced = false
		sb.prevReadForced = false

		return nil
	}

	size := sb.ref.Committed(s.Cycle)
	expected := Snapshot{Params: sb.params, Size: size}.Flags()

	if err := sb.checkFlowControl(s, expected); err != nil {
		return err
	}

	if err := sb.checkData(s); err != nil {
		return err
	}

	if err := sb.checkFlags(s, expected, size); err != nil {
		return err
	}

	sb.prevWriteForced = s.WrEn && s.Full
	sb.prevReadForced = s.RdEn && s.Empty
	sb.checked++

	sb.log.V(2).Info("cycle checked", "cycle", s.Cycle, "sample", s.String())

	return nil
}

func (sb *Scoreboard) checkFlowControl(s Sample, expected Flags) error {
	if !sb.prevWriteForced && !sb.prevReadForced {
		return nil
	}

	signal, want, got, differs := firstFlagDiff(expected, s.Flags)
	if !differs {
		return nil
	}

	detail := "device drained on a read issued while empty"
	if sb.prevWriteForced {
		detail = "device accepted a write issued while full"
	}

	return &harness.Failure{
		Kind:     harness.FlowControlViolation,
		Signal:   signal,
		Expected: want,
		Actual:   got,
		Cycle:    s.Cycle,
		Time:     s.Time,
		Detail:   detail,
	}
}

func (sb *Scoreboard) checkData(s Sample) error {
	if s.Empty {
		return nil
	}

	committed := sb.ref.Committed(s.Cycle)

	if s.RdEn {
		if committed == 0 && sb.ref.Size() > 0 {
			return nil
		}

		return sb.checkDrain(s)
	}

	if committed == 0 {
		return nil
	}

	want, err := sb.ref.Oldest()
	if err != nil {
		return sb.wrap(err)
	}

	if want != s.RdData {
		return &harness.Failure{
			Kind:     harness.DataMismatch,
			Signal:   SignalRdData,
			Expected: want,
			Actual:   s.RdData,
			Cycle:    s.Cycle,
			Time:     s.Time,
			Detail:   "FWFT stability: head differs from the oldest written word",
		}
	}

	return nil
}

func (sb *Scoreboard) checkDrain(s Sample) error {
	want, err := sb.ref.RecordObservedDrain()
	if err != nil {
		return sb.wrap(err)
	}

	record := DrainRecord{
		Cycle:    s.Cycle,
		Time:     s.Time,
		Expected: want,
		Actual:   s.RdData,
	}
	sb.drains = append(sb.drains, record)

	sb.InvokeHook(hooking.HookCtx{
		Domain: sb,
		Pos:    HookPosDrain,
		Item:   record,
	})

	sb.log.V(1).Info("drain", "cycle", s.Cycle,
		"expected", hex(want), "actual", hex(s.RdData))

	if !record.Match() {
		return &harness.Failure{
			Kind:     harness.DataMismatch,
			Signal:   SignalRdData,
			Expected: want,
			Actual:   s.RdData,
			Cycle:    s.Cycle,
			Time:     s.Time,
			Detail:   "drained word differs from the oldest written word",
		}
	}

	return nil
}

func (sb *Scoreboard) checkFlags(s Sample, expected Flags, size int) error {
	signal, want, got, differs := firstFlagDiff(expected, s.Flags)
	if !differs {
		return nil
	}

	return &harness.Failure{
		Kind:     harness.FlagMismatch,
		Signal:   signal,
		Expected: want,
		Actual:   got,
		Cycle:    s.Cycle,
		Time:     s.Time,
		Detail: fmt.Sprintf("reference holds %d words, device reports %s",
			size, s.Flags),
	}
}

func (sb *Scoreboard) wrap(err error) error {
	var f *harness.Failure
	if errors.As(err, &f) {
		return err
	}

	return fmt.Errorf("scoreboard %s: %w", sb.Name(), err)
}

func firstFlagDiff(expected, actual Flags) (
	signal string,
	want, got bool,
	differs bool,
) {
	switch {
	case expected.Empty != actual.Empty:
		return SignalEmpty, expected.Empty, actual.Empty, true
	case expected.Full != actual.Full:
		return SignalFull, expected.Full, actual.Full, true
	case expected.AlmostEmpty != actual.AlmostEmpty:
		return SignalAlmostEmpty, expected.AlmostEmpty, actual.AlmostEmpty, true
	case expected.AlmostFull != actual.AlmostFull:
		return SignalAlmostFull, expected.AlmostFull, actual.AlmostFull, true
	default:
		return "", false, false, false
	}
}
