package harness

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
)

// State is the state of a session.
type State int

// The states of a session. A scenario runs INIT, RESET, then alternates
// between STIMULUS and CHECK, then DRAIN and TEARDOWN, and ends in DONE or
// FAILED.
const (
	StateInit State = iota
	StateReset
	StateStimulus
	StateCheck
	StateDrain
	StateTeardown
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateReset:
		return "RESET"
	case StateStimulus:
		return "STIMULUS"
	case StateCheck:
		return "CHECK"
	case StateDrain:
		return "DRAIN"
	case StateTeardown:
		return "TEARDOWN"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// HookPosStateChange is triggered at every state transition of a session.
// The item is a StateChange. When the new state is DONE or FAILED, the
// detail is the *Result of the scenario.
var HookPosStateChange = &hooking.HookPos{Name: "SessionStateChange"}

// StateChange describes a state transition.
type StateChange struct {
	Scenario string
	From     State
	To       State
	Cycle    uint64
	Time     timing.VTimeInSec
}

// Result is the outcome of a scenario.
type Result struct {
	Scenario   string
	Err        error
	StartCycle uint64
	EndCycle   uint64
	StartTime  timing.VTimeInSec
	EndTime    timing.VTimeInSec
}

// Passed tells if the scenario passed.
func (r Result) Passed() bool {
	return r.Err == nil
}

// A Bench is the device-specific part of a session.
type Bench interface {
	// ApplyReset drives the reset active for the given number of edges and
	// then releases it. The reference model is cleared at the release.
	ApplyReset(t *Task, edges int)

	// CheckReset verifies the state right after reset.
	CheckReset(s Settled) error

	// StartCheckers spawns the background checkers of a scenario.
	StartCheckers(t *Task)

	// Idle drives every input to its inactive value.
	Idle(d Drive)

	// Status describes the device and reference state for diagnostics.
	Status() string
}

// Session runs scenarios one after another against the same device.
type Session struct {
	naming.NamedBase
	hooking.HookableBase

	engine timing.Engine
	kernel *Kernel
	bench  Bench
	log    logr.Logger

	resetEdges  int
	quietEdges  int
	drainBudget int
	maxCycles   uint64

	lock     sync.RWMutex
	state    State
	scenario string
	results  []Result
}

// A Snapshot is a consistent view of a session that can be taken while the
// session runs on another goroutine.
type Snapshot struct {
	Name     string
	Scenario string
	State    State
	Results  []Result
}

// Kernel returns the kernel that runs the scenario tasks.
func (s *Session) Kernel() *Kernel {
	return s.kernel
}

// Domain returns the clock domain of the device.
func (s *Session) Domain() *clock.Domain {
	return s.kernel.Domain()
}

// State returns the current state.
func (s *Session) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.state
}

// Scenario returns the name of the current or latest scenario.
func (s *Session) Scenario() string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.scenario
}

// Results returns the results of all the scenarios run so far.
func (s *Session) Results() []Result {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]Result(nil), s.results...)
}

// Snapshot returns the scenario, state and results taken together.
func (s *Session) Snapshot() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return Snapshot{
		Name:     s.Name(),
		Scenario: s.scenario,
		State:    s.state,
		Results:  append([]Result(nil), s.results...),
	}
}

// MarkStimulus records that the scenario is applying stimulus.
func (s *Session) MarkStimulus() {
	if s.State() == StateCheck {
		s.transition(StateStimulus)
	}
}

// MarkCheck records that the scenario is checking an expectation.
func (s *Session) MarkCheck() {
	if s.State() == StateStimulus {
		s.transition(StateCheck)
	}
}

// Run runs one scenario. The body starts right after the reset postcondition
// has been verified, in the sample phase, with the checkers running. Run
// returns the first failure of the scenario.
func (s *Session) Run(scenario string, body func(t *Task) error) error {
	s.lock.Lock()
	s.scenario = scenario
	s.lock.Unlock()

	s.transition(StateInit)

	result := Result{
		Scenario:   scenario,
		StartCycle: s.kernel.Domain().Cycle(),
		StartTime:  s.engine.CurrentTime(),
	}

	s.log.Info("scenario start", "scenario", scenario,
		"time", timing.FormatTime(result.StartTime))

	s.kernel.Begin(scenario, s.maxCycles)
	s.kernel.Spawn(scenario, func(t *Task) error {
		return s.runScenario(t, body)
	})

	if err := s.engine.Run(); err != nil {
		return fmt.Errorf("running scenario %s: %w", scenario, err)
	}

	result.Err = s.kernel.Err()
	if result.Err != nil {
		s.log.Error(result.Err, "scenario failed",
			"scenario", scenario, "status", s.bench.Status())

		if err := s.cleanUp(); err != nil {
			return err
		}
	}

	result.EndCycle = s.kernel.Domain().Cycle()
	result.EndTime = s.engine.CurrentTime()

	s.lock.Lock()
	s.results = append(s.results, result)
	s.lock.Unlock()

	if result.Err != nil {
		s.transitionWithResult(StateFailed, &result)
		return result.Err
	}

	s.log.Info("scenario passed", "scenario", scenario,
		"cycles", result.EndCycle-result.StartCycle)
	s.transitionWithResult(StateDone, &result)

	return nil
}

// Close stops every task left in the kernel.
func (s *Session) Close() {
	s.kernel.Shutdown()
}

func (s *Session) runScenario(t *Task, body func(t *Task) error) error {
	s.transition(StateReset)

	s.bench.ApplyReset(t, s.resetEdges)
	t.AwaitEdge()

	if err := s.bench.CheckReset(t.Settle()); err != nil {
		return err
	}

	s.bench.StartCheckers(t)
	s.transition(StateStimulus)

	if err := body(t); err != nil {
		return err
	}

	s.transition(StateDrain)

	if err := s.drain(t); err != nil {
		return err
	}

	s.transition(StateTeardown)
	s.teardown(t)

	return nil
}

func (s *Session) drain(t *Task) error {
	for i := 0; ; i++ {
		stragglers := s.stragglers(t)
		if len(stragglers) == 0 {
			break
		}

		if i >= s.drainBudget {
			return &Failure{
				Kind:   LivenessFailure,
				Signal: "drain",
				Cycle:  s.kernel.Cycle(),
				Time:   s.kernel.Now(),
				Detail: fmt.Sprintf("tasks %v still running after %d cycles; %s",
					stragglers, s.drainBudget, s.bench.Status()),
			}
		}

		t.AwaitEdge()
	}

	t.AwaitEdge()
	t.Settle()

	return nil
}

func (s *Session) stragglers(self *Task) []string {
	names := []string{}

	for _, other := range s.kernel.Tasks() {
		if other != self && !other.Daemon() {
			names = append(names, other.Name())
		}
	}

	return names
}

func (s *Session) teardown(t *Task) {
	s.kernel.CancelOthers(t)

	d := t.AwaitEdge()
	s.bench.Idle(d)
	t.AwaitEdges(s.quietEdges)

	s.log.V(1).Info("teardown complete",
		"scenario", s.scenario, "status", s.bench.Status())
}

func (s *Session) cleanUp() error {
	s.transition(StateTeardown)

	s.kernel.Begin(s.scenario, uint64(s.quietEdges+2))
	s.kernel.Spawn("Teardown", func(t *Task) error {
		s.teardown(t)
		return nil
	})

	if err := s.engine.Run(); err != nil {
		return fmt.Errorf("tearing down scenario %s: %w", s.scenario, err)
	}

	if err := s.kernel.Err(); err != nil {
		return fmt.Errorf("tearing down scenario %s: %w", s.scenario, err)
	}

	return nil
}

func (s *Session) transition(to State) {
	s.transitionWithResult(to, nil)
}

func (s *Session) transitionWithResult(to State, result *Result) {
	s.lock.Lock()
	from := s.state
	s.state = to
	s.lock.Unlock()

	s.log.V(1).Info("state", "scenario", s.scenario,
		"from", from.String(), "to", to.String())

	ctx := hooking.HookCtx{
		Domain: s,
		Pos:    HookPosStateChange,
		Item: StateChange{
			Scenario: s.scenario,
			From:     from,
			To:       to,
			Cycle:    s.kernel.Domain().Cycle(),
			Time:     s.engine.CurrentTime(),
		},
	}

	if result != nil {
		ctx.Detail = result
	}

	s.InvokeHook(ctx)
}
