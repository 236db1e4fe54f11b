package fifo

import "fmt"

// Flags are the four status outputs of a FIFO.
type Flags struct {
	Empty       bool
	Full        bool
	AlmostEmpty bool
	AlmostFull  bool
}

func (f Flags) String() string {
	return fmt.Sprintf("empty=%d full=%d almost_empty=%d almost_full=%d",
		bit(f.Empty), bit(f.Full), bit(f.AlmostEmpty), bit(f.AlmostFull))
}

func bit(b bool) int {
	if b {
		return 1
	}

	return 0
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}

// Snapshot is the occupancy of a FIFO at one point in time.
type Snapshot struct {
	Params Params
	Size   int
}

// Empty tells if the FIFO holds nothing.
func (s Snapshot) Empty() bool {
	return s.Size == 0
}

// Full tells if the FIFO holds Capacity words.
func (s Snapshot) Full() bool {
	return s.Size == s.Params.Capacity()
}

// AlmostEmpty tells if the size is at or below the almost-empty threshold.
func (s Snapshot) AlmostEmpty() bool {
	return s.Size <= s.Params.AlmostEmptyThreshold
}

// AlmostFull tells if the size is at or above capacity minus the
// almost-full threshold.
func (s Snapshot) AlmostFull() bool {
	return s.Size >= s.Params.Capacity()-s.Params.AlmostFullThreshold
}

// Flags returns the status outputs that a FIFO of this size must report.
func (s Snapshot) Flags() Flags {
	return Flags{
		Empty:       s.Empty(),
		Full:        s.Full(),
		AlmostEmpty: s.AlmostEmpty(),
		AlmostFull:  s.AlmostFull(),
	}
}
