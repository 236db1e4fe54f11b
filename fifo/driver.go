package fifo

import (
	"math/rand"

	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/naming"
)

// A StimulusMarker is told whenever stimulus is applied.
type StimulusMarker interface {
	MarkStimulus()
}

// Driver issues write and read requests. It only drives a request when the
// status flags of the issuing cycle allow it, and records every write it
// drives into the reference queue.
type Driver struct {
	naming.NamedBase
	hooking.HookableBase

	adapter *Adapter
	ref     WriteRecorder
	marker  StimulusMarker
	rng     *rand.Rand
	log     logr.Logger
}

// NewDriver creates a driver. The seed makes RandomData reproducible.
func NewDriver(
	name string,
	adapter *Adapter,
	ref WriteRecorder,
	seed int64,
	log logr.Logger,
) *Driver {
	return &Driver{
		NamedBase: naming.MakeNamedBase(name),
		adapter:   adapter,
		ref:       ref,
		rng:       rand.New(rand.NewSource(seed)),
		log:       log.WithName("driver"),
	}
}

// SetStimulusMarker sets who is told about applied stimulus.
func (dr *Driver) SetStimulusMarker(m StimulusMarker) {
	dr.marker = m
}

// Write waits for the next edge and writes v, unless the device reports
// full. An accepted write holds wr_en for exactly one cycle.
func (dr *Driver) Write(t *harness.Task, v uint64) Outcome {
	d := t.AwaitEdge()

	intent := dr.write(t, d, v)
	if intent.Outcome != Accepted {
		return intent.Outcome
	}

	release := dr.deassertOnCancel(t, dr.adapter.DriveWrEn)
	d = t.AwaitEdge()
	dr.adapter.DriveWrEn(d, false)
	release()

	return Accepted
}

// Read waits for the next edge and reads one word, unless the device reports
// empty. The word is sampled at the settle point of the issuing cycle.
func (dr *Driver) Read(t *harness.Task) (uint64, Outcome) {
	d := t.AwaitEdge()

	intent := dr.read(t, d)
	if intent.Outcome != Accepted {
		return 0, intent.Outcome
	}

	release := dr.deassertOnCancel(t, dr.adapter.DriveRdEn)
	d = t.AwaitEdge()
	dr.adapter.DriveRdEn(d, false)
	release()

	return intent.Value, Accepted
}

// WriteBurst writes values on consecutive cycles. It stops at the first
// cycle the device reports full and returns how many words were written.
func (dr *Driver) WriteBurst(t *harness.Task, values []uint64) int {
	dr.log.V(1).Info("burst write", "words", len(values))

	written := 0
	release := dr.deassertOnCancel(t, dr.adapter.DriveWrEn)
	d := t.AwaitEdge()

	for _, v := range values {
		intent := dr.write(t, d, v)
		if intent.Outcome != Accepted {
			dr.log.V(1).Info("burst write stopped on full",
				"written", written, "skipped", len(values)-written)
			break
		}

		written++
		d = t.AwaitEdge()
	}

	dr.adapter.DriveWrEn(d, false)
	release()
	dr.log.V(1).Info("burst write complete", "written", written)

	return written
}

// ReadBurst reads up to n words on consecutive cycles. It stops at the first
// cycle the device reports empty and returns the words read.
func (dr *Driver) ReadBurst(t *harness.Task, n int) []uint64 {
	dr.log.V(1).Info("burst read", "words", n)

	values := make([]uint64, 0, n)
	release := dr.deassertOnCancel(t, dr.adapter.DriveRdEn)
	d := t.AwaitEdge()

	for i := 0; i < n; i++ {
		intent := dr.read(t, d)
		if intent.Outcome != Accepted {
			dr.log.V(1).Info("burst read stopped on empty", "read", len(values))
			break
		}

		values = append(values, intent.Value)
		d = t.AwaitEdge()
	}

	dr.adapter.DriveRdEn(d, false)
	release()
	dr.log.V(1).Info("burst read complete", "read", len(values))

	return values
}

// WriteUnchecked writes v without looking at the status flags, holding
// wr_en for one cycle. The write is recorded, so it must only be used when
// the device is known not to be full.
func (dr *Driver) WriteUnchecked(t *harness.Task, v uint64) {
	d := t.AwaitEdge()
	dr.markStimulus()

	v &= dr.adapter.Params().MaxData()
	intent := newIntent(IntentWrite, v, d.Cycle())

	dr.log.V(1).Info("write", "data", hex(v), "cycle", d.Cycle(),
		"unchecked", true)

	dr.adapter.DriveWrData(d, v)
	dr.adapter.DriveWrEn(d, true)

	if err := dr.ref.RecordAcceptedWrite(v); err != nil {
		t.Fail(err)
	}

	dr.resolve(intent, Accepted)

	release := dr.deassertOnCancel(t, dr.adapter.DriveWrEn)
	d = t.AwaitEdge()
	dr.adapter.DriveWrEn(d, false)
	release()
}

// ForceWrite drives a write of v for one cycle only if the device reports
// full. The write is not recorded, since a conforming device ignores it. It
// returns Rejected if the write was driven and NotAttempted otherwise.
func (dr *Driver) ForceWrite(t *harness.Task, v uint64) Outcome {
	d := t.AwaitEdge()
	dr.markStimulus()

	intent := newIntent(IntentWrite, v&dr.adapter.Params().MaxData(), d.Cycle())
	intent.Forced = true

	if !dr.adapter.Flags(d).Full {
		dr.resolve(intent, NotAttempted)
		return NotAttempted
	}

	dr.adapter.DriveWrData(d, v)
	dr.adapter.DriveWrEn(d, true)
	dr.resolve(intent, Rejected)

	release := dr.deassertOnCancel(t, dr.adapter.DriveWrEn)
	d = t.AwaitEdge()
	dr.adapter.DriveWrEn(d, false)
	release()

	return Rejected
}

// ForceRead drives a read for one cycle only if the device reports empty.
// It returns Rejected if the read was driven and NotAttempted otherwise.
func (dr *Driver) ForceRead(t *harness.Task) Outcome {
	d := t.AwaitEdge()
	dr.markStimulus()

	intent := newIntent(IntentRead, 0, d.Cycle())
	intent.Forced = true

	if !dr.adapter.Flags(d).Empty {
		dr.resolve(intent, NotAttempted)
		return NotAttempted
	}

	dr.adapter.DriveRdEn(d, true)
	dr.resolve(intent, Rejected)

	release := dr.deassertOnCancel(t, dr.adapter.DriveRdEn)
	d = t.AwaitEdge()
	dr.adapter.DriveRdEn(d, false)
	release()

	return Rejected
}

// RandomData returns n random words that fit in the data width.
func (dr *Driver) RandomData(n int) []uint64 {
	mask := dr.adapter.Params().MaxData()

	values := make([]uint64, n)
	for i := range values {
		values[i] = dr.rng.Uint64() & mask
	}

	return values
}

// RandomInt returns a random integer in [lo, hi].
func (dr *Driver) RandomInt(lo, hi int) int {
	return lo + dr.rng.Intn(hi-lo+1)
}

func (dr *Driver) write(t *harness.Task, d harness.Drive, v uint64) *Intent {
	dr.markStimulus()

	v &= dr.adapter.Params().MaxData()
	intent := newIntent(IntentWrite, v, d.Cycle())

	if dr.adapter.Flags(d).Full {
		dr.log.V(1).Info("write skipped, fifo full",
			"data", hex(v), "cycle", d.Cycle())
		dr.resolve(intent, Rejected)

		return intent
	}

	dr.log.V(1).Info("write", "data", hex(v), "cycle", d.Cycle())

	dr.adapter.DriveWrData(d, v)
	dr.adapter.DriveWrEn(d, true)

	if err := dr.ref.RecordAcceptedWrite(v); err != nil {
		t.Fail(err)
	}

	dr.resolve(intent, Accepted)

	return intent
}

func (dr *Driver) read(t *harness.Task, d harness.Drive) *Intent {
	dr.markStimulus()

	intent := newIntent(IntentRead, 0, d.Cycle())

	if dr.adapter.Flags(d).Empty {
		dr.log.V(1).Info("read skipped, fifo empty", "cycle", d.Cycle())
		dr.resolve(intent, Rejected)

		return intent
	}

	dr.adapter.DriveRdEn(d, true)

	s := t.Settle()
	intent.Value = dr.adapter.Sample(s).RdData

	dr.log.V(1).Info("read", "data", hex(intent.Value), "cycle", d.Cycle())
	dr.resolve(intent, Accepted)

	return intent
}

// deassertOnCancel keeps an enable from staying asserted when t is
// cancelled while holding it.
func (dr *Driver) deassertOnCancel(
	t *harness.Task,
	drive func(d harness.Drive, v bool),
) (release func()) {
	return t.OnCancel(func(d harness.Drive) {
		drive(d, false)
	})
}

func (dr *Driver) resolve(intent *Intent, outcome Outcome) {
	intent.Outcome = outcome

	dr.InvokeHook(hooking.HookCtx{
		Domain: dr,
		Pos:    HookPosIntent,
		Item:   intent,
	})
}

func (dr *Driver) markStimulus() {
	if dr.marker != nil {
		dr.marker.MarkStimulus()
	}
}
