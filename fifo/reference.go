package fifo

import (
	"errors"
	"fmt"

	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/timing"
)

// ErrNotReset is returned when the reference queue is used before the first
// reset has completed.
var ErrNotReset = errors.New("reference queue used before the first reset")

// HookPosRefPush marks when an accepted write is recorded.
var HookPosRefPush = &hooking.HookPos{Name: "Reference Push"}

// HookPosRefPop marks when an observed drain is recorded.
var HookPosRefPop = &hooking.HookPos{Name: "Reference Pop"}

// A CycleClock tells the current cycle and time.
type CycleClock interface {
	Cycle() uint64
	Now() timing.VTimeInSec
}

// WriteRecorder is the view of the reference queue given to stimulus
// generators. They can only append.
type WriteRecorder interface {
	RecordAcceptedWrite(value uint64) error
	Size() int
}

// DrainObserver is the view of the reference queue given to the scoreboard.
// It can only remove and peek.
type DrainObserver interface {
	RecordObservedDrain() (uint64, error)
	Oldest() (uint64, error)
	Committed(cycle uint64) int
	Size() int
}

type refEntry struct {
	value uint64
	cycle uint64
}

// ReferenceQueue holds the words that the device is expected to hold, in
// write order. Each entry remembers the cycle it was written in, because the
// device latches a write only at the edge that ends that cycle.
type ReferenceQueue struct {
	hooking.HookableBase

	clock   CycleClock
	mask    uint64
	entries []refEntry
	isReset bool
}

// NewReferenceQueue creates an empty queue for words of the given width.
func NewReferenceQueue(params Params, clock CycleClock) *ReferenceQueue {
	return &ReferenceQueue{
		clock: clock,
		mask:  params.MaxData(),
	}
}

// Reset drops every entry. It must be called when the device reset is
// released, and it enables every other operation.
func (q *ReferenceQueue) Reset() {
	q.entries = nil
	q.isReset = true
}

// IsReset tells if Reset has been called.
func (q *ReferenceQueue) IsReset() bool {
	return q.isReset
}

// RecordAcceptedWrite appends a write that the device accepts at the next
// edge.
func (q *ReferenceQueue) RecordAcceptedWrite(value uint64) error {
	if !q.isReset {
		return ErrNotReset
	}

	e := refEntry{value: value & q.mask, cycle: q.clock.Cycle()}
	q.entries = append(q.entries, e)

	q.InvokeHook(hooking.HookCtx{
		Domain: q,
		Pos:    HookPosRefPush,
		Item:   e.value,
	})

	return nil
}

// RecordObservedDrain removes and returns the oldest word. Draining an empty
// queue means the reference lost track of the device, and is reported as a
// Desynchronization failure.
func (q *ReferenceQueue) RecordObservedDrain() (uint64, error) {
	if !q.isReset {
		return 0, ErrNotReset
	}

	if len(q.entries) == 0 {
		return 0, q.desync("drain observed while the reference queue is empty")
	}

	e := q.entries[0]
	q.entries = q.entries[1:]

	q.InvokeHook(hooking.HookCtx{
		Domain: q,
		Pos:    HookPosRefPop,
		Item:   e.value,
	})

	return e.value, nil
}

// Oldest returns the oldest word without removing it.
func (q *ReferenceQueue) Oldest() (uint64, error) {
	if !q.isReset {
		return 0, ErrNotReset
	}

	if len(q.entries) == 0 {
		return 0, q.desync("head requested while the reference queue is empty")
	}

	return q.entries[0].value, nil
}

// Size returns the number of words recorded and not yet drained, including
// writes that the device has not latched yet.
func (q *ReferenceQueue) Size() int {
	return len(q.entries)
}

// Committed returns the number of words that the device holds at the given
// cycle, that is, the words written in earlier cycles.
func (q *ReferenceQueue) Committed(cycle uint64) int {
	n := 0
	for _, e := range q.entries {
		if e.cycle >= cycle {
			break
		}

		n++
	}

	return n
}

// Values returns a copy of the words in the queue, oldest first.
func (q *ReferenceQueue) Values() []uint64 {
	values := make([]uint64, len(q.entries))
	for i, e := range q.entries {
		values[i] = e.value
	}

	return values
}

func (q *ReferenceQueue) String() string {
	return fmt.Sprintf("%d words %#x", len(q.entries), q.Values())
}

func (q *ReferenceQueue) desync(detail string) error {
	return &harness.Failure{
		Kind:   harness.Desynchronization,
		Signal: "reference queue",
		Cycle:  q.clock.Cycle(),
		Time:   q.clock.Now(),
		Detail: detail,
	}
}
