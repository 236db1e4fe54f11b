package fifo

import (
	"fmt"

	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/id"
)

// HookPosIntent is triggered when an intent is resolved. The item is the
// *Intent.
var HookPosIntent = &hooking.HookPos{Name: "Intent"}

// IntentKind tells what an intent asks the device to do.
type IntentKind int

// The kinds of intents.
const (
	IntentWrite IntentKind = iota
	IntentRead
)

func (k IntentKind) String() string {
	if k == IntentWrite {
		return "write"
	}

	return "read"
}

// Outcome is the resolution of an intent.
type Outcome int

// The outcomes of an intent.
const (
	// NotAttempted means the request was never put on the interface.
	NotAttempted Outcome = iota

	// Accepted means the request was driven while the device could take it.
	Accepted

	// Rejected means the device reported full (for writes) or empty (for
	// reads) in the issuing cycle.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case NotAttempted:
		return "not attempted"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// An Intent is a single write or read request, issued in one cycle.
type Intent struct {
	ID      string
	Kind    IntentKind
	Value   uint64
	Cycle   uint64
	Forced  bool
	Outcome Outcome
}

func newIntent(kind IntentKind, value, cycle uint64) *Intent {
	return &Intent{
		ID:    id.Generate(),
		Kind:  kind,
		Value: value,
		Cycle: cycle,
	}
}

func (i *Intent) String() string {
	s := fmt.Sprintf("%s %#x at cycle %d: %s", i.Kind, i.Value, i.Cycle, i.Outcome)
	if i.Forced {
		s = "forced " + s
	}

	return s
}

type intentRow struct {
	ID      string
	Kind    string
	Value   uint64
	Cycle   uint64
	Forced  bool
	Outcome string
}

// TableName returns the table that intents are recorded into.
func (i *Intent) TableName() string {
	return "intent"
}

// Record returns the intent as a flat row.
func (i *Intent) Record() any {
	return intentRow{
		ID:      i.ID,
		Kind:    i.Kind.String(),
		Value:   i.Value,
		Cycle:   i.Cycle,
		Forced:  i.Forced,
		Outcome: i.Outcome.String(),
	}
}
