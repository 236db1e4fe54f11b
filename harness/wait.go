package harness

import "fmt"

// A Probe inspects the settled outputs. It reports whether the awaited state
// has been reached and describes the state it saw.
type Probe func(s Settled) (reached bool, state string)

// WaitUntil samples once per cycle, at the settle point, until probe reports
// the awaited state. After budget cycles without success it returns a
// LivenessFailure carrying the last state the probe saw.
func WaitUntil(t *Task, budget int, what string, probe Probe) error {
	lastState := "<never sampled>"

	for i := 0; i < budget; i++ {
		s := t.Settle()

		reached, state := probe(s)
		if reached {
			return nil
		}

		lastState = state
	}

	k := t.Kernel()

	return &Failure{
		Kind:   LivenessFailure,
		Signal: what,
		Cycle:  k.Cycle(),
		Time:   k.Now(),
		Detail: fmt.Sprintf("not reached within %d cycles, last state: %s",
			budget, lastState),
	}
}
