// Package harness runs clock-synchronous testbench code.
//
// Testbench code runs in tasks. A Kernel lets exactly one task run at a time
// and switches tasks only when the running one suspends at a clock edge, at
// a settle point, or on another task. Within a cycle, every task waiting on
// the edge runs before any task waiting on the settle point, so driving
// inputs and sampling outputs never overlap.
package harness

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/timing"
)

// Phase is the part of a cycle that the running task is in.
type Phase int

// The phases of a cycle, as seen by tasks.
const (
	PhaseIdle Phase = iota
	PhaseDrive
	PhaseSample
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle phase"
	case PhaseDrive:
		return "drive phase"
	case PhaseSample:
		return "sample phase"
	default:
		return "unknown phase"
	}
}

// HookPosTaskExit is triggered when a task finishes. The item is the *Task.
var HookPosTaskExit = &hooking.HookPos{Name: "TaskExit"}

// Kernel schedules the tasks attached to one clock domain.
type Kernel struct {
	hooking.HookableBase

	domain *clock.Domain
	log    logr.Logger

	baton   chan struct{}
	current *Task

	dispatching   bool
	runQueue      []*Task
	pending       []*Task
	edgeWaiters   []*Task
	settleWaiters []*Task
	live          []*Task
	cleanups      []*cancelCleanup
	closing       bool

	phase Phase
	cycle uint64

	scenario   string
	startCycle uint64
	maxCycles  uint64
	failure    error
}

// NewKernel creates a kernel and attaches it to the domain.
func NewKernel(domain *clock.Domain, log logr.Logger) *Kernel {
	k := &Kernel{
		domain: domain,
		log:    log.WithName("kernel"),
		baton:  make(chan struct{}),
		cycle:  domain.Cycle(),
	}

	domain.RegisterListener(k)

	return k
}

// Domain returns the clock domain that the kernel follows.
func (k *Kernel) Domain() *clock.Domain {
	return k.domain
}

// Logger returns the logger of the kernel.
func (k *Kernel) Logger() logr.Logger {
	return k.log
}

// Now returns the current simulated time.
func (k *Kernel) Now() timing.VTimeInSec {
	return k.domain.Now()
}

// Cycle returns the current cycle number.
func (k *Kernel) Cycle() uint64 {
	return k.cycle
}

// Phase returns the current phase.
func (k *Kernel) Phase() Phase {
	return k.phase
}

// Scenario returns the name given to the latest Begin.
func (k *Kernel) Scenario() string {
	return k.scenario
}

// Begin starts a new scenario. It clears the previous failure and, if
// maxCycles is not zero, fails the scenario with a LivenessFailure once more
// than maxCycles edges have passed.
func (k *Kernel) Begin(scenario string, maxCycles uint64) {
	k.scenario = scenario
	k.startCycle = k.domain.Cycle()
	k.maxCycles = maxCycles
	k.failure = nil
}

// Err returns the first failure of the current scenario.
func (k *Kernel) Err() error {
	return k.failure
}

// Spawn creates a task that runs fn. The task starts in the current phase if
// called from a task, or at the next edge otherwise.
func (k *Kernel) Spawn(name string, fn func(t *Task) error) *Task {
	return k.spawn(name, fn, false)
}

// SpawnDaemon creates a background task. Daemons do not keep the clock
// running and are not waited for when a scenario drains.
func (k *Kernel) SpawnDaemon(name string, fn func(t *Task) error) *Task {
	return k.spawn(name, fn, true)
}

func (k *Kernel) spawn(name string, fn func(t *Task) error, daemon bool) *Task {
	t := newTask(k, name, fn, daemon)
	k.live = append(k.live, t)

	k.log.V(2).Info("spawn", "task", name, "daemon", daemon, "cycle", k.cycle)

	go t.run()

	k.ready(t)

	return t
}

// Tasks returns the tasks that have not finished.
func (k *Kernel) Tasks() []*Task {
	tasks := make([]*Task, len(k.live))
	copy(tasks, k.live)

	return tasks
}

// Active tells if any non-daemon task is alive or a cancel cleanup is
// waiting for a drive phase. The clock keeps running only while this is
// true.
func (k *Kernel) Active() bool {
	if len(k.cleanups) > 0 {
		return true
	}

	for _, t := range k.live {
		if !t.daemon && !t.cancelled {
			return true
		}
	}

	return false
}

// CancelAll cancels every task that has not finished.
func (k *Kernel) CancelAll() {
	for _, t := range k.Tasks() {
		t.Cancel()
	}
}

// CancelOthers cancels every task except keep.
func (k *Kernel) CancelOthers(keep *Task) {
	for _, t := range k.Tasks() {
		if t != keep {
			t.Cancel()
		}
	}
}

// Shutdown cancels every task and waits until all of them have exited. It
// must not be called from a task.
func (k *Kernel) Shutdown() {
	if k.dispatching {
		panic(&ProtocolViolation{
			Op: "Shutdown", Detail: "called while tasks are running",
		})
	}

	k.closing = true
	k.CancelAll()
	k.pending = nil
	k.cleanups = nil
	k.closing = false
}

// OnEdge starts the drive phase of a new cycle.
func (k *Kernel) OnEdge(d *clock.Domain) {
	k.cycle = d.Cycle()
	k.phase = PhaseDrive
	k.dispatching = true

	k.runQueue = append(k.runQueue, k.pending...)
	k.pending = nil
	k.enqueue(k.edgeWaiters)
	k.edgeWaiters = nil

	k.runCleanups()

	if k.maxCycles > 0 && k.cycle-k.startCycle > k.maxCycles {
		k.fail(&Failure{
			Kind:   LivenessFailure,
			Signal: "cycle budget",
			Detail: fmt.Sprintf("scenario did not finish within %d cycles",
				k.maxCycles),
		})
	}

	k.dispatch()
}

// OnSettle starts the sample phase of the current cycle.
func (k *Kernel) OnSettle(d *clock.Domain) {
	k.phase = PhaseSample
	k.dispatching = true

	k.runQueue = append(k.runQueue, k.pending...)
	k.pending = nil
	k.enqueue(k.settleWaiters)
	k.settleWaiters = nil

	k.dispatch()
}

func (k *Kernel) enqueue(tasks []*Task) {
	for _, t := range tasks {
		t.queued = true
		k.runQueue = append(k.runQueue, t)
	}
}

func (k *Kernel) dispatch() {
	for len(k.runQueue) > 0 {
		t := k.runQueue[0]
		k.runQueue = k.runQueue[1:]
		k.resume(t)
	}

	k.dispatching = false
	k.phase = PhaseIdle
}

func (k *Kernel) resume(t *Task) {
	t.queued = false
	k.current = t

	if k.phase == PhaseDrive && !t.cancelled {
		t.drivenIn = k.cycle
	}

	t.wake <- struct{}{}
	<-k.baton

	k.current = nil

	if t.done {
		k.retire(t)
	}
}

func (k *Kernel) ready(t *Task) {
	if t.queued {
		return
	}

	t.queued = true

	if k.dispatching {
		k.runQueue = append(k.runQueue, t)
		return
	}

	k.pending = append(k.pending, t)
	k.domain.Wake()
}

func (k *Kernel) retire(t *Task) {
	k.live = removeTask(k.live, t)

	for _, j := range t.joiners {
		k.ready(j)
	}

	t.joiners = nil

	if t.cancelled && len(t.cleanups) > 0 {
		k.cleanUpAfter(t)
	}

	k.log.V(2).Info("exit", "task", t.name, "cycle", k.cycle, "err", t.err)

	k.InvokeHook(hooking.HookCtx{
		Domain: k,
		Pos:    HookPosTaskExit,
		Item:   t,
	})

	if t.err != nil && !errors.Is(t.err, ErrCancelled) {
		k.fail(t.err)
	}
}

func (k *Kernel) cleanUpAfter(t *Task) {
	cleanups := t.cleanups
	t.cleanups = nil

	if k.closing {
		return
	}

	if k.phase == PhaseDrive && t.drivenIn != k.cycle {
		k.log.V(2).Info("cancel cleanup", "task", t.name, "cycle", k.cycle)
		callCleanups(Drive{k: k, cycle: k.cycle}, cleanups)

		return
	}

	k.cleanups = append(k.cleanups, cleanups...)

	if !k.dispatching {
		k.domain.Wake()
	}
}

func (k *Kernel) runCleanups() {
	cleanups := k.cleanups
	k.cleanups = nil

	callCleanups(Drive{k: k, cycle: k.cycle}, cleanups)
}

func callCleanups(d Drive, cleanups []*cancelCleanup) {
	for _, c := range cleanups {
		c.fn(d)
	}
}

func (k *Kernel) fail(err error) {
	if k.failure != nil {
		return
	}

	var f *Failure
	if errors.As(err, &f) {
		if f.Scenario == "" {
			f.Scenario = k.scenario
		}

		if f.Cycle == 0 && f.Time == 0 {
			f.Cycle = k.cycle
			f.Time = k.Now()
		}
	}

	k.failure = err
	k.log.V(1).Info("failure", "scenario", k.scenario, "cycle", k.cycle,
		"err", err.Error())

	k.CancelAll()
}

func (k *Kernel) unwait(t *Task) {
	k.edgeWaiters = removeTask(k.edgeWaiters, t)
	k.settleWaiters = removeTask(k.settleWaiters, t)

	if t.joining != nil {
		t.joining.joiners = removeTask(t.joining.joiners, t)
	}
}

func removeTask(list []*Task, t *Task) []*Task {
	for i, x := range list {
		if x == t {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}
