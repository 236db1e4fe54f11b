package syncfifo

import (
	"fmt"
	"strings"
)

// Fault is a set of deliberate defects that the model can exhibit.
type Fault uint32

// The defects that can be injected.
const (
	// FaultAcceptWhenFull lets a write overwrite the head when full.
	FaultAcceptWhenFull Fault = 1 << iota

	// FaultDrainWhenEmpty lets a read move the read pointer when empty.
	FaultDrainWhenEmpty

	// FaultEarlyFull asserts full one word before capacity.
	FaultEarlyFull

	// FaultAlmostFullOffByOne asserts almost_full one word late.
	FaultAlmostFullOffByOne

	// FaultAlmostEmptyOffByOne deasserts almost_empty one word early.
	FaultAlmostEmptyOffByOne

	// FaultStaleHead only updates rd_data when a read is latched.
	FaultStaleHead

	// FaultLIFO presents the newest word instead of the oldest.
	FaultLIFO

	// FaultDropConcurrentWrite loses a write latched together with a read.
	FaultDropConcurrentWrite

	// FaultIgnoreReset keeps the pointers through a reset.
	FaultIgnoreReset
)

// NoFault is a conforming device.
const NoFault Fault = 0

var faultNames = []struct {
	f    Fault
	name string
}{
	{FaultAcceptWhenFull, "accept-when-full"},
	{FaultDrainWhenEmpty, "drain-when-empty"},
	{FaultEarlyFull, "early-full"},
	{FaultAlmostFullOffByOne, "almost-full-off-by-one"},
	{FaultAlmostEmptyOffByOne, "almost-empty-off-by-one"},
	{FaultStaleHead, "stale-head"},
	{FaultLIFO, "lifo"},
	{FaultDropConcurrentWrite, "drop-concurrent-write"},
	{FaultIgnoreReset, "ignore-reset"},
}

// AllFaults lists every single fault.
func AllFaults() []Fault {
	faults := make([]Fault, len(faultNames))
	for i, n := range faultNames {
		faults[i] = n.f
	}

	return faults
}

// Has tells if every fault in x is set.
func (f Fault) Has(x Fault) bool {
	return f&x == x
}

func (f Fault) String() string {
	if f == NoFault {
		return "none"
	}

	names := []string{}
	for _, n := range faultNames {
		if f.Has(n.f) {
			names = append(names, n.name)
		}
	}

	return strings.Join(names, "|")
}

// ParseFault parses a "|"-separated list of fault names, as printed by
// String. An empty string or "none" is NoFault.
func ParseFault(s string) (Fault, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return NoFault, nil
	}

	f := NoFault

outer:
	for _, token := range strings.Split(s, "|") {
		token = strings.TrimSpace(token)

		for _, n := range faultNames {
			if n.name == token {
				f |= n.f
				continue outer
			}
		}

		return NoFault, fmt.Errorf("unknown fault %q", token)
	}

	return f, nil
}
