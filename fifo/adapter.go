package fifo

import (
	"fmt"

	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/timing"
	"github.com/sarchlab/hwconform/tracing"
)

// Signal names, as they appear in failures and traces.
const (
	SignalResetN      = "resetn"
	SignalWrEn        = "wr_en"
	SignalWrData      = "wr_data"
	SignalRdEn        = "rd_en"
	SignalEmpty       = "empty"
	SignalFull        = "full"
	SignalAlmostEmpty = "almost_empty"
	SignalAlmostFull  = "almost_full"
	SignalRdData      = "rd_data"
)

// Inputs are the values driven into the device.
type Inputs struct {
	ResetN bool
	WrEn   bool
	WrData uint64
	RdEn   bool
}

// Sample is everything visible at a settle point: the outputs of the device
// and the inputs driven during the cycle.
type Sample struct {
	Cycle uint64
	Time  timing.VTimeInSec
	Inputs
	Flags
	RdData uint64
}

func (s Sample) String() string {
	return fmt.Sprintf(
		"resetn=%d wr_en=%d wr_data=%#x rd_en=%d | %s rd_data=%#x",
		bit(s.ResetN), bit(s.WrEn), s.WrData, bit(s.RdEn), s.Flags, s.RdData)
}

// Adapter gives typed, phase-checked access to the signals of a device.
// Inputs can only be driven with a harness.Drive token and outputs can only
// be sampled with a harness.Settled token.
type Adapter struct {
	dev    Device
	params Params
	driven Inputs
}

// NewAdapter binds an adapter to a device. The device parameters are read
// once, here.
func NewAdapter(dev Device) *Adapter {
	return &Adapter{
		dev:    dev,
		params: dev.Params(),
	}
}

// Params returns the device parameters.
func (a *Adapter) Params() Params {
	return a.params
}

// DriveResetN drives the active-low reset.
func (a *Adapter) DriveResetN(d harness.Drive, v bool) {
	d.MustBeValid("DriveResetN")

	a.driven.ResetN = v
	a.dev.SetResetN(v)
}

// DriveWrEn drives the write enable.
func (a *Adapter) DriveWrEn(d harness.Drive, v bool) {
	d.MustBeValid("DriveWrEn")

	a.driven.WrEn = v
	a.dev.SetWrEn(v)
}

// DriveWrData drives the write data, truncated to the data width.
func (a *Adapter) DriveWrData(d harness.Drive, v uint64) {
	d.MustBeValid("DriveWrData")

	v &= a.params.MaxData()
	a.driven.WrData = v
	a.dev.SetWrData(v)
}

// DriveRdEn drives the read enable.
func (a *Adapter) DriveRdEn(d harness.Drive, v bool) {
	d.MustBeValid("DriveRdEn")

	a.driven.RdEn = v
	a.dev.SetRdEn(v)
}

// Idle releases the reset and deasserts both enables.
func (a *Adapter) Idle(d harness.Drive) {
	a.DriveWrEn(d, false)
	a.DriveRdEn(d, false)
	a.DriveWrData(d, 0)
	a.DriveResetN(d, true)
}

// Flags returns the registered status flags at the start of the drive phase.
// Stimulus generators use them to decide whether to issue an intent. They
// are not meant for correctness checks, which use Sample.
func (a *Adapter) Flags(d harness.Drive) Flags {
	d.MustBeValid("Flags")

	return a.flags()
}

func (a *Adapter) flags() Flags {
	return Flags{
		Empty:       a.dev.Empty(),
		Full:        a.dev.Full(),
		AlmostEmpty: a.dev.AlmostEmpty(),
		AlmostFull:  a.dev.AlmostFull(),
	}
}

// Sample returns the settled outputs together with the driven inputs.
func (a *Adapter) Sample(s harness.Settled) Sample {
	s.MustBeValid("Sample")

	sample := a.peek(s.Cycle())
	sample.Time = s.Time()

	return sample
}

func (a *Adapter) peek(cycle uint64) Sample {
	return Sample{
		Cycle:  cycle,
		Inputs: a.driven,
		Flags:  a.flags(),
		RdData: a.dev.RdData(),
	}
}

// Driven returns the input values most recently driven.
func (a *Adapter) Driven() Inputs {
	return a.driven
}

// Peek reads every signal without a token. It is for status dumps only.
func (a *Adapter) Peek() Sample {
	return a.peek(0)
}

// Signals lists every signal value at a settle point, for tracing.
func (a *Adapter) Signals(s harness.Settled) []tracing.Signal {
	sample := a.Sample(s)

	return []tracing.Signal{
		{Name: SignalResetN, Value: uint64(bit(sample.ResetN))},
		{Name: SignalWrEn, Value: uint64(bit(sample.WrEn))},
		{Name: SignalWrData, Value: sample.WrData},
		{Name: SignalRdEn, Value: uint64(bit(sample.RdEn))},
		{Name: SignalEmpty, Value: uint64(bit(sample.Empty))},
		{Name: SignalFull, Value: uint64(bit(sample.Full))},
		{Name: SignalAlmostEmpty, Value: uint64(bit(sample.AlmostEmpty))},
		{Name: SignalAlmostFull, Value: uint64(bit(sample.AlmostFull))},
		{Name: SignalRdData, Value: sample.RdData},
	}
}
