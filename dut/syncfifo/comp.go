// Package syncfifo provides a behavioural model of a synchronous
// first-word-fall-through FIFO, with switchable defects for exercising
// testbenches.
package syncfifo

import (
	"github.com/sarchlab/hwconform/fifo"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
)

// Comp is a synchronous FWFT FIFO with an active-low synchronous reset.
//
// Inputs are latched at the rising edge. The status flags are registered at
// the edge. The head word is presented on rd_data without a read, and is
// updated when the combinational logic settles.
type Comp struct {
	naming.NamedBase

	params fifo.Params
	faults Fault

	mem  []uint64
	wptr int
	rptr int
	mask int

	resetN bool
	wrEn   bool
	wrData uint64
	rdEn   bool

	empty       bool
	full        bool
	almostEmpty bool
	almostFull  bool
	rdData      uint64

	readLatched bool
}

// Params returns the build-time parameters.
func (c *Comp) Params() fifo.Params {
	return c.params
}

// Faults returns the injected defects.
func (c *Comp) Faults() Fault {
	return c.faults
}

// SetResetN drives resetn.
func (c *Comp) SetResetN(v bool) {
	c.resetN = v
}

// SetWrEn drives wr_en.
func (c *Comp) SetWrEn(v bool) {
	c.wrEn = v
}

// SetWrData drives wr_data.
func (c *Comp) SetWrData(v uint64) {
	c.wrData = v & c.params.MaxData()
}

// SetRdEn drives rd_en.
func (c *Comp) SetRdEn(v bool) {
	c.rdEn = v
}

// Empty returns the empty flag.
func (c *Comp) Empty() bool {
	return c.empty
}

// Full returns the full flag.
func (c *Comp) Full() bool {
	return c.full
}

// AlmostEmpty returns the almost_empty flag.
func (c *Comp) AlmostEmpty() bool {
	return c.almostEmpty
}

// AlmostFull returns the almost_full flag.
func (c *Comp) AlmostFull() bool {
	return c.almostFull
}

// RdData returns the word presented on rd_data.
func (c *Comp) RdData() uint64 {
	return c.rdData
}

// Size returns the number of words stored.
func (c *Comp) Size() int {
	return (c.wptr - c.rptr) & c.mask
}

// RisingEdge latches the inputs.
func (c *Comp) RisingEdge(_ timing.VTimeInSec) {
	c.readLatched = false

	if !c.resetN {
		if !c.faults.Has(FaultIgnoreReset) {
			c.wptr = 0
			c.rptr = 0
		}

		c.updateFlags()

		return
	}

	write := c.wrEn && (!c.full || c.faults.Has(FaultAcceptWhenFull))
	read := c.rdEn && (!c.empty || c.faults.Has(FaultDrainWhenEmpty))

	if write && read && c.faults.Has(FaultDropConcurrentWrite) {
		write = false
	}

	if write {
		c.mem[c.wptr&(c.params.Capacity()-1)] = c.wrData
		c.wptr = (c.wptr + 1) & c.mask
	}

	if read {
		c.rptr = (c.rptr + 1) & c.mask
		c.readLatched = true
	}

	c.updateFlags()
}

// Settle updates rd_data.
func (c *Comp) Settle(_ timing.VTimeInSec) {
	if c.faults.Has(FaultStaleHead) && !c.readLatched {
		return
	}

	head := c.rptr
	if c.faults.Has(FaultLIFO) && c.Size() > 0 {
		head = c.wptr - 1
	}

	c.rdData = c.mem[head&(c.params.Capacity()-1)]
}

func (c *Comp) updateFlags() {
	size := c.Size()
	capacity := c.params.Capacity()

	afLevel := capacity - c.params.AlmostFullThreshold
	if c.faults.Has(FaultAlmostFullOffByOne) {
		afLevel++
	}

	aeLevel := c.params.AlmostEmptyThreshold
	if c.faults.Has(FaultAlmostEmptyOffByOne) {
		aeLevel--
	}

	c.empty = size == 0
	c.full = size == capacity ||
		(c.faults.Has(FaultEarlyFull) && size == capacity-1)
	c.almostEmpty = size <= aeLevel
	c.almostFull = size >= afLevel
}
