package fifo

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/datarecording"
	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/tracing"
)

// A Scenario is a named testbench body. It starts right after the reset
// postcondition has been verified.
type Scenario struct {
	Name string
	Body func(tb *Testbench, t *harness.Task) error
}

type checker struct {
	name string
	fn   func(t *harness.Task) error
}

// Testbench checks one FIFO device. It owns the adapter, the reference
// queue, the driver and the scoreboard, and runs scenarios in a session.
type Testbench struct {
	naming.NamedBase

	session    *harness.Session
	adapter    *Adapter
	ref        *ReferenceQueue
	driver     *Driver
	scoreboard *Scoreboard
	sampler    *tracing.SignalSampler
	checkers   []checker

	waitBudget int
	log        logr.Logger
}

// Session returns the session that runs the scenarios.
func (tb *Testbench) Session() *harness.Session {
	return tb.session
}

// Kernel returns the kernel that runs the scenario tasks.
func (tb *Testbench) Kernel() *harness.Kernel {
	return tb.session.Kernel()
}

// Params returns the device parameters.
func (tb *Testbench) Params() Params {
	return tb.adapter.Params()
}

// Adapter returns the signal adapter.
func (tb *Testbench) Adapter() *Adapter {
	return tb.adapter
}

// Reference returns the reference queue.
func (tb *Testbench) Reference() *ReferenceQueue {
	return tb.ref
}

// Driver returns the stimulus driver.
func (tb *Testbench) Driver() *Driver {
	return tb.driver
}

// Scoreboard returns the scoreboard.
func (tb *Testbench) Scoreboard() *Scoreboard {
	return tb.scoreboard
}

// Sampler returns the signal sampler. It runs only while it has hooks.
func (tb *Testbench) Sampler() *tracing.SignalSampler {
	return tb.sampler
}

// AddChecker adds a daemon that runs next to the scoreboard in every
// scenario.
func (tb *Testbench) AddChecker(name string, fn func(t *harness.Task) error) {
	tb.checkers = append(tb.checkers, checker{name: name, fn: fn})
}

// AttachRecorder records signal samples, intents and drains.
func (tb *Testbench) AttachRecorder(recorder datarecording.DataRecorder) {
	hook := tracing.NewRecorderHook(recorder)

	tb.sampler.AcceptHook(hook)
	tb.driver.AcceptHook(hook)
	tb.scoreboard.AcceptHook(hook)
}

// Run runs one scenario and returns its first failure.
func (tb *Testbench) Run(s Scenario) error {
	return tb.session.Run(s.Name, func(t *harness.Task) error {
		return s.Body(tb, t)
	})
}

// RunAll runs every scenario, even after failures, and returns all the
// failures joined.
func (tb *Testbench) RunAll(scenarios ...Scenario) error {
	var errs []error

	for _, s := range scenarios {
		if err := tb.Run(s); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close stops every task left in the kernel.
func (tb *Testbench) Close() {
	tb.session.Close()
}

// ApplyReset asserts the reset for the given number of edges with both
// enables low, then releases it and clears the reference queue.
func (tb *Testbench) ApplyReset(t *harness.Task, edges int) {
	d := t.AwaitEdge()
	tb.log.Info("starting reset", "cycle", d.Cycle())

	tb.adapter.DriveResetN(d, false)
	tb.adapter.DriveWrEn(d, false)
	tb.adapter.DriveRdEn(d, false)
	tb.adapter.DriveWrData(d, 0)

	d = t.AwaitEdges(edges)
	tb.adapter.DriveResetN(d, true)
	tb.ref.Reset()

	tb.log.Info("reset complete", "cycle", d.Cycle())
}

// CheckReset verifies that the device is empty after reset.
func (tb *Testbench) CheckReset(s harness.Settled) error {
	if err := tb.ExpectFlags(s, Snapshot{Params: tb.Params()}.Flags()); err != nil {
		return err
	}

	if tb.ref.Size() != 0 {
		return &harness.Failure{
			Kind:   harness.Desynchronization,
			Signal: "reference queue",
			Cycle:  s.Cycle(),
			Time:   s.Time(),
			Detail: fmt.Sprintf("reference holds %s after reset", tb.ref),
		}
	}

	return nil
}

// StartCheckers spawns the scoreboard, the sampler if it has hooks, and the
// extra checkers.
func (tb *Testbench) StartCheckers(t *harness.Task) {
	t.SpawnDaemon(tb.scoreboard.Name(), tb.scoreboard.Run)

	if tb.sampler.NumHooks() > 0 {
		t.SpawnDaemon(tb.sampler.Name(), tb.sampler.Run)
	}

	for _, c := range tb.checkers {
		t.SpawnDaemon(c.name, c.fn)
	}
}

// Idle drives every input inactive.
func (tb *Testbench) Idle(d harness.Drive) {
	tb.adapter.Idle(d)
}

// Status describes the device outputs and the reference queue.
func (tb *Testbench) Status() string {
	return fmt.Sprintf("device: %s; reference: %s", tb.adapter.Peek(), tb.ref)
}

func (tb *Testbench) fail(
	kind harness.FailureKind,
	signal string,
	expected, actual any,
	detail string,
) error {
	k := tb.Kernel()

	return &harness.Failure{
		Kind:     kind,
		Signal:   signal,
		Expected: expected,
		Actual:   actual,
		Cycle:    k.Cycle(),
		Time:     k.Now(),
		Detail:   detail,
	}
}

// ExpectFlags checks the status flags at a settle point.
func (tb *Testbench) ExpectFlags(s harness.Settled, want Flags) error {
	tb.session.MarkCheck()

	got := tb.adapter.Sample(s).Flags

	signal, w, g, differs := firstFlagDiff(want, got)
	if !differs {
		return nil
	}

	return tb.fail(harness.FlagMismatch, signal, w, g,
		fmt.Sprintf("device reports %s", got))
}

// ExpectSize checks the status flags against the ones a FIFO holding size
// words must report.
func (tb *Testbench) ExpectSize(s harness.Settled, size int) error {
	return tb.ExpectFlags(s, Snapshot{Params: tb.Params(), Size: size}.Flags())
}

// ExpectHead checks the word presented on rd_data at a settle point.
func (tb *Testbench) ExpectHead(s harness.Settled, want uint64) error {
	return tb.ExpectData("head", want, tb.adapter.Sample(s).RdData)
}

// ExpectData checks a word read from the device.
func (tb *Testbench) ExpectData(what string, want, got uint64) error {
	tb.session.MarkCheck()

	if want == got {
		return nil
	}

	return tb.fail(harness.DataMismatch, SignalRdData, want, got, what)
}

// ExpectOutcome checks how a request was resolved. A request is rejected
// only when the device reports full (writes) or empty (reads), so a wrong
// outcome is reported against that flag.
func (tb *Testbench) ExpectOutcome(kind IntentKind, want, got Outcome) error {
	tb.session.MarkCheck()

	if want == got {
		return nil
	}

	signal := SignalFull
	if kind == IntentRead {
		signal = SignalEmpty
	}

	return tb.fail(harness.FlagMismatch, signal,
		want == Rejected, got == Rejected,
		fmt.Sprintf("%s expected to be %s, was %s", kind, want, got))
}

// ExpectCount checks how many words a burst moved. A burst stops early only
// when the device reports full (writes) or empty (reads).
func (tb *Testbench) ExpectCount(kind IntentKind, want, got int) error {
	tb.session.MarkCheck()

	if want == got {
		return nil
	}

	signal := SignalFull
	if kind == IntentRead {
		signal = SignalEmpty
	}

	return tb.fail(harness.FlagMismatch, signal, false, true,
		fmt.Sprintf("burst %s stopped after %d of %d words", kind, got, want))
}

// ExpectValues checks words read from the device against the words
// expected, in order.
func (tb *Testbench) ExpectValues(want, got []uint64) error {
	if len(got) > len(want) {
		return tb.fail(harness.Desynchronization, SignalRdData,
			nil, nil,
			fmt.Sprintf("read %d words, only %d were written", len(got), len(want)))
	}

	for i, v := range got {
		if err := tb.ExpectData(fmt.Sprintf("read %d", i+1), want[i], v); err != nil {
			return err
		}
	}

	return nil
}

// WaitForFlag samples every cycle until the named flag has the given value.
func (tb *Testbench) WaitForFlag(t *harness.Task, signal string, want bool) error {
	tb.session.MarkCheck()

	return harness.WaitUntil(t, tb.waitBudget, signal,
		func(s harness.Settled) (bool, string) {
			sample := tb.adapter.Sample(s)

			var v bool
			switch signal {
			case SignalEmpty:
				v = sample.Empty
			case SignalFull:
				v = sample.Full
			case SignalAlmostEmpty:
				v = sample.AlmostEmpty
			case SignalAlmostFull:
				v = sample.AlmostFull
			default:
				panic(fmt.Sprintf("%s is not a status flag", signal))
			}

			return v == want, sample.String()
		})
}
