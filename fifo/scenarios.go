package fifo

import (
	"fmt"

	"github.com/sarchlab/hwconform/harness"
)

// RandomConfig shapes the random simultaneous read/write scenarios.
type RandomConfig struct {
	Iterations int
	InitialMin int
	InitialMax int
	OpsMin     int
	OpsMax     int
}

// DefaultRandomConfig returns 20 iterations of 2 to 10 initial words and 50
// to 300 writes and reads.
func DefaultRandomConfig() RandomConfig {
	return RandomConfig{
		Iterations: 20,
		InitialMin: 2,
		InitialMax: 10,
		OpsMin:     50,
		OpsMax:     300,
	}
}

// Catalog returns every scenario.
func Catalog(cfg RandomConfig) []Scenario {
	scenarios := []Scenario{
		ResetScenario,
		BasicWriteReadScenario,
		BackToBackScenario,
		FWFTScenario,
		FullAndEmptyScenario,
		AlmostFullEmptyScenario,
		HandWrittenWordScenario,
		FlowControlScenario,
		WatermarkSweepScenario,
	}

	scenarios = append(scenarios, RandomSimultaneousScenarios(cfg)...)
	scenarios = append(scenarios, RandomSimultaneousWithWordScenarios(cfg)...)

	return scenarios
}

// HandWrittenWord is the word written by the hand-written scenarios.
const HandWrittenWord = 0x1234

// ResetScenario checks that the device stays empty after reset.
var ResetScenario = Scenario{
	Name: "Reset",
	Body: func(tb *Testbench, t *harness.Task) error {
		return tb.ExpectSize(t.Settle(), 0)
	},
}

// BasicWriteReadScenario writes one random word and reads it back.
var BasicWriteReadScenario = Scenario{
	Name: "BasicWriteRead",
	Body: func(tb *Testbench, t *harness.Task) error {
		dr := tb.Driver()
		v := dr.RandomData(1)[0]

		if err := tb.ExpectOutcome(IntentWrite, Accepted, dr.Write(t, v)); err != nil {
			return err
		}

		got, out := dr.Read(t)
		if err := tb.ExpectOutcome(IntentRead, Accepted, out); err != nil {
			return err
		}

		if err := tb.ExpectData("read after write", v, got); err != nil {
			return err
		}

		return tb.ExpectSize(t.Settle(), 0)
	},
}

// BackToBackScenario drives a write and then a read on the next cycle
// directly on the signals.
var BackToBackScenario = Scenario{
	Name: "BackToBackReadAfterWrite",
	Body: func(tb *Testbench, t *harness.Task) error {
		dr := tb.Driver()
		a := tb.Adapter()
		v := dr.RandomData(1)[0]

		dr.WriteUnchecked(t, v)

		if err := tb.ExpectSize(t.Settle(), 1); err != nil {
			return err
		}

		d := t.AwaitEdge()
		tb.Session().MarkStimulus()
		a.DriveRdEn(d, true)

		if err := tb.ExpectHead(t.Settle(), v); err != nil {
			return err
		}

		d = t.AwaitEdge()
		a.DriveRdEn(d, false)

		return tb.ExpectSize(t.Settle(), 0)
	},
}

// FWFTScenario checks that the oldest word is presented without a read, and
// stays presented while more words are written.
var FWFTScenario = Scenario{
	Name: "FirstWordFallThrough",
	Body: func(tb *Testbench, t *harness.Task) error {
		dr := tb.Driver()
		data := dr.RandomData(2)

		if err := tb.ExpectOutcome(IntentWrite, Accepted, dr.Write(t, data[0])); err != nil {
			return err
		}

		if err := tb.ExpectHead(t.AwaitCycles(1), data[0]); err != nil {
			return err
		}

		if err := tb.ExpectOutcome(IntentWrite, Accepted, dr.Write(t, data[1])); err != nil {
			return err
		}

		if err := tb.ExpectHead(t.AwaitCycles(1), data[0]); err != nil {
			return err
		}

		got, out := dr.Read(t)
		if err := tb.ExpectOutcome(IntentRead, Accepted, out); err != nil {
			return err
		}

		if err := tb.ExpectData("first read", data[0], got); err != nil {
			return err
		}

		return tb.ExpectHead(t.Settle(), data[1])
	},
}

// FullAndEmptyScenario fills the device to capacity and drains it.
var FullAndEmptyScenario = Scenario{
	Name: "FullAndEmpty",
	Body: func(tb *Testbench, t *harness.Task) error {
		dr := tb.Driver()
		capacity := tb.Params().Capacity()
		data := dr.RandomData(capacity)

		written := dr.WriteBurst(t, data)
		if err := tb.ExpectCount(IntentWrite, capacity, written); err != nil {
			return err
		}

		if err := tb.ExpectSize(t.Settle(), capacity); err != nil {
			return err
		}

		values := dr.ReadBurst(t, capacity)
		if err := tb.ExpectCount(IntentRead, capacity, len(values)); err != nil {
			return err
		}

		if err := tb.ExpectValues(data, values); err != nil {
			return err
		}

		return tb.ExpectSize(t.Settle(), 0)
	},
}

// AlmostFullEmptyScenario fills the device up to the almost-full watermark
// and drains it down to the almost-empty watermark.
var AlmostFullEmptyScenario = Scenario{
	Name: "AlmostFullAndAlmostEmpty",
	Body: func(tb *Testbench, t *harness.Task) error {
		dr := tb.Driver()
		p := tb.Params()

		fill := p.Capacity() - p.AlmostFullThreshold
		data := dr.RandomData(fill)

		written := dr.WriteBurst(t, data)
		if err := tb.ExpectCount(IntentWrite, fill, written); err != nil {
			return err
		}

		if err := tb.ExpectSize(t.Settle(), fill); err != nil {
			return err
		}

		drain := fill - p.AlmostEmptyThreshold
		if drain <= 0 {
			return nil
		}

		values := dr.ReadBurst(t, drain)
		if err := tb.ExpectCount(IntentRead, drain, len(values)); err != nil {
			return err
		}

		if err := tb.ExpectValues(data, values); err != nil {
			return err
		}

		return tb.ExpectSize(t.Settle(), fill-drain)
	},
}

// HandWrittenWordScenario writes HandWrittenWord, reads it back and checks
// that the device is empty again.
var HandWrittenWordScenario = Scenario{
	Name: "HandWrittenWord",
	Body: func(tb *Testbench, t *harness.Task) error {
		dr := tb.Driver()
		want := HandWrittenWord & tb.Params().MaxData()

		if err := tb.ExpectOutcome(IntentWrite, Accepted, dr.Write(t, HandWrittenWord)); err != nil {
			return err
		}

		got, out := dr.Read(t)
		if err := tb.ExpectOutcome(IntentRead, Accepted, out); err != nil {
			return err
		}

		if err := tb.ExpectData("hand-written word", want, got); err != nil {
			return err
		}

		return tb.ExpectSize(t.Settle(), 0)
	},
}

// FlowControlScenario writes into a full device and reads from an empty one
// on purpose. The scoreboard fails if the device accepts either.
var FlowControlScenario = Scenario{
	Name: "FlowControl",
	Body: func(tb *Testbench, t *harness.Task) error {
		dr := tb.Driver()
		capacity := tb.Params().Capacity()
		data := dr.RandomData(capacity)

		written := dr.WriteBurst(t, data)
		if err := tb.ExpectCount(IntentWrite, capacity, written); err != nil {
			return err
		}

		forced := dr.RandomData(1)[0]
		if err := tb.ExpectOutcome(IntentWrite, Rejected, dr.ForceWrite(t, forced)); err != nil {
			return err
		}

		if err := tb.ExpectSize(t.Settle(), capacity); err != nil {
			return err
		}

		values := dr.ReadBurst(t, capacity)
		if err := tb.ExpectValues(data, values); err != nil {
			return err
		}

		if err := tb.ExpectCount(IntentRead, capacity, len(values)); err != nil {
			return err
		}

		if err := tb.ExpectOutcome(IntentRead, Rejected, dr.ForceRead(t)); err != nil {
			return err
		}

		return tb.ExpectSize(t.Settle(), 0)
	},
}

// WatermarkSweepScenario walks through every size from empty to full and
// back, one word at a time, checking all the flags at every size.
var WatermarkSweepScenario = Scenario{
	Name: "WatermarkSweep",
	Body: func(tb *Testbench, t *harness.Task) error {
		dr := tb.Driver()
		capacity := tb.Params().Capacity()
		data := dr.RandomData(capacity)

		if err := tb.ExpectSize(t.Settle(), 0); err != nil {
			return err
		}

		for i, v := range data {
			if err := tb.ExpectOutcome(IntentWrite, Accepted, dr.Write(t, v)); err != nil {
				return err
			}

			if err := tb.ExpectSize(t.Settle(), i+1); err != nil {
				return err
			}
		}

		for i, v := range data {
			got, out := dr.Read(t)
			if err := tb.ExpectOutcome(IntentRead, Accepted, out); err != nil {
				return err
			}

			if err := tb.ExpectData(fmt.Sprintf("read %d", i+1), v, got); err != nil {
				return err
			}

			if err := tb.ExpectSize(t.Settle(), capacity-i-1); err != nil {
				return err
			}
		}

		return nil
	},
}

// RandomSimultaneousScenarios writes a few words, then runs a random write
// burst and a random read burst at the same time.
func RandomSimultaneousScenarios(cfg RandomConfig) []Scenario {
	scenarios := make([]Scenario, cfg.Iterations)

	for i := range scenarios {
		scenarios[i] = Scenario{
			Name: fmt.Sprintf("RandomSimultaneousReadWrite/%d", i+1),
			Body: func(tb *Testbench, t *harness.Task) error {
				return randomSimultaneous(tb, t, cfg, false)
			},
		}
	}

	return scenarios
}

// RandomSimultaneousWithWordScenarios writes HandWrittenWord directly on the
// signals, then runs a random write burst and, one cycle later, a random
// read burst.
func RandomSimultaneousWithWordScenarios(cfg RandomConfig) []Scenario {
	scenarios := make([]Scenario, cfg.Iterations)

	for i := range scenarios {
		scenarios[i] = Scenario{
			Name: fmt.Sprintf("RandomSimultaneousReadWriteWithWord/%d", i+1),
			Body: func(tb *Testbench, t *harness.Task) error {
				return randomSimultaneous(tb, t, cfg, true)
			},
		}
	}

	return scenarios
}

func randomSimultaneous(
	tb *Testbench,
	t *harness.Task,
	cfg RandomConfig,
	handWritten bool,
) error {
	dr := tb.Driver()

	var initial []uint64
	if handWritten {
		initial = []uint64{HandWrittenWord & tb.Params().MaxData()}
	} else {
		n := min(dr.RandomInt(cfg.InitialMin, cfg.InitialMax),
			tb.Params().Capacity())
		initial = dr.RandomData(n)
	}

	writes := dr.RandomInt(cfg.OpsMin, cfg.OpsMax)
	reads := dr.RandomInt(cfg.OpsMin, cfg.OpsMax)

	tb.log.Info("random simultaneous read/write", "scenario", t.Kernel().Scenario(),
		"initial", len(initial), "writes", writes, "reads", reads)

	if handWritten {
		dr.WriteUnchecked(t, initial[0])
	} else {
		accepted := initial[:0]
		for _, v := range initial {
			if dr.Write(t, v) == Accepted {
				accepted = append(accepted, v)
			}
		}
		initial = accepted
	}

	data := dr.RandomData(writes)

	var (
		written int
		values  []uint64
	)

	writer := t.Spawn("Writer", func(t *harness.Task) error {
		written = dr.WriteBurst(t, data)
		return nil
	})

	if handWritten {
		t.AwaitEdge()
	}

	reader := t.Spawn("Reader", func(t *harness.Task) error {
		values = dr.ReadBurst(t, reads)
		return nil
	})

	if err := t.Join(writer); err != nil {
		return err
	}

	if err := t.Join(reader); err != nil {
		return err
	}

	expected := append(initial, data[:written]...)
	if err := tb.ExpectValues(expected, values); err != nil {
		return err
	}

	remaining := tb.Reference().Size()
	rest := dr.ReadBurst(t, remaining)

	if err := tb.ExpectValues(expected[len(values):], rest); err != nil {
		return err
	}

	if err := tb.ExpectCount(IntentRead, remaining, len(rest)); err != nil {
		return err
	}

	return tb.WaitForFlag(t, SignalEmpty, true)
}
