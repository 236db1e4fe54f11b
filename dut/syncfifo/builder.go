package syncfifo

import (
	"github.com/sarchlab/hwconform/fifo"
	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/naming"
)

// Builder can build FIFO models.
type Builder struct {
	params fifo.Params
	faults Fault
	domain *clock.Domain
}

// MakeBuilder returns a Builder for a 16-bit, 16-deep FIFO with both
// watermarks at 2.
func MakeBuilder() Builder {
	return Builder{
		params: fifo.Params{
			DataWidth:            16,
			AddrWidth:            4,
			AlmostFullThreshold:  2,
			AlmostEmptyThreshold: 2,
		},
	}
}

// WithParams sets every parameter at once.
func (b Builder) WithParams(p fifo.Params) Builder {
	b.params = p
	return b
}

// WithDataWidth sets the word width in bits.
func (b Builder) WithDataWidth(w int) Builder {
	b.params.DataWidth = w
	return b
}

// WithAddrWidth sets the address width. The depth is 2^w.
func (b Builder) WithAddrWidth(w int) Builder {
	b.params.AddrWidth = w
	return b
}

// WithAlmostFullThreshold sets how many free slots assert almost_full.
func (b Builder) WithAlmostFullThreshold(n int) Builder {
	b.params.AlmostFullThreshold = n
	return b
}

// WithAlmostEmptyThreshold sets the size at or below which almost_empty is
// asserted.
func (b Builder) WithAlmostEmptyThreshold(n int) Builder {
	b.params.AlmostEmptyThreshold = n
	return b
}

// WithFaults sets the defects to inject.
func (b Builder) WithFaults(f Fault) Builder {
	b.faults = f
	return b
}

// WithDomain sets the clock domain that the FIFO is registered on.
func (b Builder) WithDomain(d *clock.Domain) Builder {
	b.domain = d
	return b
}

// Build creates a FIFO. The FIFO starts with reset asserted.
func (b Builder) Build(name string) *Comp {
	if err := b.params.Validate(); err != nil {
		panic(err)
	}

	capacity := b.params.Capacity()

	c := &Comp{
		NamedBase: naming.MakeNamedBase(name),
		params:    b.params,
		faults:    b.faults,
		mem:       make([]uint64, capacity),
		mask:      2*capacity - 1,
	}
	c.updateFlags()

	if b.domain != nil {
		b.domain.RegisterDevice(c)
	}

	return c
}
