package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sarchlab/hwconform/sim/timing"
)

// ErrCancelled is the result of a task that was cancelled before it
// returned.
var ErrCancelled = errors.New("task cancelled")

// FailureKind classifies a conformance failure.
type FailureKind int

// The kinds of conformance failures.
const (
	// FlowControlViolation means the device accepted a write while reporting
	// full, or drained while reporting empty.
	FlowControlViolation FailureKind = iota + 1

	// DataMismatch means an observed value differs from the reference.
	DataMismatch

	// FlagMismatch means a status flag disagrees with the occupancy that the
	// reference implies.
	FlagMismatch

	// Desynchronization means the reference itself lost track of the device,
	// for example a drain was observed while the reference was empty.
	Desynchronization

	// LivenessFailure means an expected state was not reached within its
	// cycle budget.
	LivenessFailure
)

func (k FailureKind) String() string {
	switch k {
	case FlowControlViolation:
		return "flow-control violation"
	case DataMismatch:
		return "data mismatch"
	case FlagMismatch:
		return "flag mismatch"
	case Desynchronization:
		return "desynchronization"
	case LivenessFailure:
		return "liveness failure"
	default:
		return fmt.Sprintf("failure kind %d", int(k))
	}
}

// Failure describes the first divergence found in a scenario.
type Failure struct {
	Kind     FailureKind
	Scenario string
	Signal   string
	Expected any
	Actual   any
	Cycle    uint64
	Time     timing.VTimeInSec
	Detail   string
}

func (f *Failure) Error() string {
	var b strings.Builder

	b.WriteString(f.Kind.String())

	if f.Scenario != "" {
		fmt.Fprintf(&b, " in %s", f.Scenario)
	}

	if f.Signal != "" {
		fmt.Fprintf(&b, " on %s", f.Signal)
	}

	fmt.Fprintf(&b, " at cycle %d (%s)", f.Cycle, timing.FormatTime(f.Time))

	if f.Expected != nil || f.Actual != nil {
		fmt.Fprintf(&b, ": expected %s, actual %s",
			formatValue(f.Expected), formatValue(f.Actual))
	}

	if f.Detail != "" {
		b.WriteString(": ")
		b.WriteString(f.Detail)
	}

	return b.String()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "<none>"
	case uint64:
		return fmt.Sprintf("%#x", v)
	case bool:
		if v {
			return "1"
		}

		return "0"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// KindOf returns the kind of the Failure wrapped in err.
func KindOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}

	return 0, false
}

// ProtocolViolation is the panic value raised when the harness itself breaks
// the drive/sample discipline, such as driving with a token from an earlier
// cycle. It is a defect in the testbench code, not in the device.
type ProtocolViolation struct {
	Op     string
	Detail string
}

func (v *ProtocolViolation) Error() string {
	return "protocol violation in " + v.Op + ": " + v.Detail
}
