// Package fifo checks synchronous first-word-fall-through FIFOs.
//
// A Testbench drives a Device through an Adapter, mirrors every accepted
// write into a ReferenceQueue, and runs a Scoreboard that compares the
// device outputs with the reference on every cycle.
package fifo

import "fmt"

// Params are the build-time parameters of a FIFO.
type Params struct {
	DataWidth            int
	AddrWidth            int
	AlmostFullThreshold  int
	AlmostEmptyThreshold int
}

// Capacity returns the number of words the FIFO holds.
func (p Params) Capacity() int {
	return 1 << p.AddrWidth
}

// MaxData returns the largest value that fits in a word.
func (p Params) MaxData() uint64 {
	if p.DataWidth >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << p.DataWidth) - 1
}

// Validate checks that the parameters describe a buildable FIFO.
func (p Params) Validate() error {
	if p.DataWidth < 1 || p.DataWidth > 64 {
		return fmt.Errorf("data width must be in [1, 64], got %d", p.DataWidth)
	}

	if p.AddrWidth < 1 || p.AddrWidth > 16 {
		return fmt.Errorf("address width must be in [1, 16], got %d",
			p.AddrWidth)
	}

	if p.AlmostFullThreshold < 0 || p.AlmostFullThreshold >= p.Capacity() {
		return fmt.Errorf("almost-full threshold must be in [0, %d), got %d",
			p.Capacity(), p.AlmostFullThreshold)
	}

	if p.AlmostEmptyThreshold < 0 || p.AlmostEmptyThreshold >= p.Capacity() {
		return fmt.Errorf("almost-empty threshold must be in [0, %d), got %d",
			p.Capacity(), p.AlmostEmptyThreshold)
	}

	return nil
}

func (p Params) String() string {
	return fmt.Sprintf(
		"DATA_WIDTH=%d, ADDR_WIDTH=%d, DEPTH=%d, "+
			"ALMOST_FULL_THRESHOLD=%d, ALMOST_EMPTY_THRESHOLD=%d",
		p.DataWidth, p.AddrWidth, p.Capacity(),
		p.AlmostFullThreshold, p.AlmostEmptyThreshold)
}
