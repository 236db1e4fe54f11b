package harness

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/sim/id"
)

// A Task is a piece of testbench code running under a Kernel.
type Task struct {
	k      *Kernel
	id     string
	name   string
	fn     func(t *Task) error
	daemon bool

	wake chan struct{}

	queued    bool
	cancelled bool
	done      bool
	err       error

	joining *Task
	joiners []*Task

	drivenIn uint64
	cleanups []*cancelCleanup
}

type cancelCleanup struct {
	fn func(d Drive)
}

func newTask(k *Kernel, name string, fn func(t *Task) error, daemon bool) *Task {
	return &Task{
		k:      k,
		id:     id.Generate(),
		name:   name,
		fn:     fn,
		daemon: daemon,
		wake:   make(chan struct{}),
	}
}

// ID returns the unique ID of the task.
func (t *Task) ID() string {
	return t.id
}

// Name returns the name of the task.
func (t *Task) Name() string {
	return t.name
}

// Daemon tells if the task is a background task.
func (t *Task) Daemon() bool {
	return t.daemon
}

// Kernel returns the kernel that runs the task.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Logger returns the kernel logger tagged with the task name.
func (t *Task) Logger() logr.Logger {
	return t.k.log.WithValues("task", t.name)
}

// Done tells if the task has finished.
func (t *Task) Done() bool {
	return t.done
}

// Err returns the result of a finished task. A cancelled task reports
// ErrCancelled.
func (t *Task) Err() error {
	return t.err
}

func (t *Task) run() {
	<-t.wake

	defer t.exit()

	if t.cancelled {
		runtime.Goexit()
	}

	t.err = t.fn(t)
}

func (t *Task) exit() {
	if r := recover(); r != nil {
		if pv, ok := r.(*ProtocolViolation); ok {
			t.err = pv
		} else {
			t.err = fmt.Errorf("task %s panicked: %v\n%s", t.name, r, debug.Stack())
		}
	}

	if t.err == nil && t.cancelled {
		t.err = ErrCancelled
	}

	t.done = true
	t.k.baton <- struct{}{}
}

func (t *Task) mustBeRunning(op string) {
	if t.k.current != t {
		panic(&ProtocolViolation{
			Op:     op,
			Detail: fmt.Sprintf("task %s is not the running task", t.name),
		})
	}
}

func (t *Task) suspend() {
	if t.cancelled {
		runtime.Goexit()
	}

	t.k.baton <- struct{}{}
	<-t.wake

	if t.cancelled {
		runtime.Goexit()
	}
}

// AwaitEdge suspends the task until the next rising edge and returns the
// drive token of the new cycle.
func (t *Task) AwaitEdge() Drive {
	t.mustBeRunning("AwaitEdge")

	k := t.k
	k.edgeWaiters = append(k.edgeWaiters, t)
	t.suspend()

	return Drive{k: k, cycle: k.cycle}
}

// Settle suspends the task until the next settle point and returns the
// sampling token of that cycle. Called in a drive phase, it waits for the
// settle point of the same cycle. Called in a sample phase, it waits for the
// settle point of the following cycle.
func (t *Task) Settle() Settled {
	t.mustBeRunning("Settle")

	k := t.k
	k.settleWaiters = append(k.settleWaiters, t)
	t.suspend()

	return Settled{k: k, cycle: k.cycle}
}

// AwaitEdges waits for n rising edges and returns the drive token of the
// last one. n must be at least 1.
func (t *Task) AwaitEdges(n int) Drive {
	if n < 1 {
		panic(&ProtocolViolation{
			Op: "AwaitEdges", Detail: fmt.Sprintf("invalid edge count %d", n),
		})
	}

	var d Drive
	for i := 0; i < n; i++ {
		d = t.AwaitEdge()
	}

	return d
}

// AwaitCycles waits for n rising edges and then for the settle point of the
// last cycle.
func (t *Task) AwaitCycles(n int) Settled {
	t.AwaitEdges(n)
	return t.Settle()
}

// Spawn creates a task that starts in the current phase.
func (t *Task) Spawn(name string, fn func(t *Task) error) *Task {
	return t.k.Spawn(name, fn)
}

// SpawnDaemon creates a background task that starts in the current phase.
func (t *Task) SpawnDaemon(name string, fn func(t *Task) error) *Task {
	return t.k.SpawnDaemon(name, fn)
}

// Join suspends the task until other finishes and returns the result of
// other.
func (t *Task) Join(other *Task) error {
	t.mustBeRunning("Join")

	if other == t {
		panic(&ProtocolViolation{Op: "Join", Detail: "task joins itself"})
	}

	if other.done {
		return other.err
	}

	other.joiners = append(other.joiners, t)
	t.joining = other
	t.suspend()
	t.joining = nil

	return other.err
}

// Fail ends the task with err. It must be called by the task itself.
func (t *Task) Fail(err error) {
	t.mustBeRunning("Fail")

	t.err = err
	runtime.Goexit()
}

// OnCancel registers fn to run if the task is cancelled. The kernel calls
// fn in a drive phase after the task has stopped: the current one if the
// task has not run in it yet, the next one otherwise. Calling the returned
// function unregisters fn.
func (t *Task) OnCancel(fn func(d Drive)) (release func()) {
	c := &cancelCleanup{fn: fn}
	t.cleanups = append(t.cleanups, c)

	return func() {
		for i, x := range t.cleanups {
			if x == c {
				t.cleanups = append(t.cleanups[:i], t.cleanups[i+1:]...)
				return
			}
		}
	}
}

// Cancel stops the task. A suspended task is stopped before it resumes, and
// a running task stops at its next suspension point. Deferred functions of
// the task run.
func (t *Task) Cancel() {
	if t.done || t.cancelled {
		return
	}

	t.cancelled = true

	k := t.k
	k.unwait(t)

	if k.current == t {
		return
	}

	if k.dispatching {
		k.ready(t)
		return
	}

	if t.queued {
		k.pending = removeTask(k.pending, t)
	}

	k.resume(t)
}
