package harness

import (
	"fmt"

	"github.com/sarchlab/hwconform/sim/timing"
)

// Drive grants the right to drive device inputs. AwaitEdge hands one out at
// the start of every drive phase. It stays valid until the settle point of
// the same cycle; values driven with it are latched at the next edge.
type Drive struct {
	k     *Kernel
	cycle uint64
}

// Cycle returns the cycle the token was issued in.
func (d Drive) Cycle() uint64 {
	return d.cycle
}

// MustBeValid panics with a *ProtocolViolation if the token has expired.
func (d Drive) MustBeValid(op string) {
	if d.k == nil {
		panic(&ProtocolViolation{Op: op, Detail: "zero drive token"})
	}

	if d.k.phase != PhaseDrive || d.k.cycle != d.cycle {
		panic(&ProtocolViolation{
			Op: op,
			Detail: fmt.Sprintf("drive token of cycle %d used in %s of cycle %d",
				d.cycle, d.k.phase, d.k.cycle),
		})
	}
}

// Settled grants the right to sample device outputs. Settle hands one out at
// the settle point of a cycle, and it expires with that settle point.
type Settled struct {
	k     *Kernel
	cycle uint64
}

// Cycle returns the cycle the token was issued in.
func (s Settled) Cycle() uint64 {
	return s.cycle
}

// Time returns the current simulated time.
func (s Settled) Time() timing.VTimeInSec {
	return s.k.Now()
}

// MustBeValid panics with a *ProtocolViolation if the token has expired.
func (s Settled) MustBeValid(op string) {
	if s.k == nil {
		panic(&ProtocolViolation{Op: op, Detail: "zero settled token"})
	}

	if s.k.phase != PhaseSample || s.k.cycle != s.cycle {
		panic(&ProtocolViolation{
			Op: op,
			Detail: fmt.Sprintf("settled token of cycle %d used in %s of cycle %d",
				s.cycle, s.k.phase, s.k.cycle),
		})
	}
}
