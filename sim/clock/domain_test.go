package clock

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/timing"
)

type traceEntry struct {
	who   string
	what  string
	time  timing.VTimeInSec
	cycle uint64
}

type traceDevice struct {
	name   string
	domain **Domain
	trace  *[]traceEntry
}

func (d *traceDevice) RisingEdge(now timing.VTimeInSec) {
	*d.trace = append(*d.trace,
		traceEntry{d.name, "latch", now, (*d.domain).Cycle()})
}

func (d *traceDevice) Settle(now timing.VTimeInSec) {
	*d.trace = append(*d.trace,
		traceEntry{d.name, "eval", now, (*d.domain).Cycle()})
}

type countingListener struct {
	name    string
	cycles  uint64
	trace   *[]traceEntry
	settles uint64
}

func (l *countingListener) OnEdge(d *Domain) {
	*l.trace = append(*l.trace,
		traceEntry{l.name, "edge", d.Now(), d.Cycle()})
}

func (l *countingListener) OnSettle(d *Domain) {
	l.settles++
	*l.trace = append(*l.trace,
		traceEntry{l.name, "settle", d.Now(), d.Cycle()})
}

func (l *countingListener) Active() bool {
	return l.settles < l.cycles
}

var _ = Describe("Domain", func() {
	var (
		engine *timing.SerialEngine
		trace  []traceEntry
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		trace = nil
	})

	It("should latch, drive, settle and sample in order", func() {
		var domain *Domain
		domain = MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * timing.GHz).
			Build("Clk")
		domain.RegisterDevice(&traceDevice{"Dut", &domain, &trace})
		domain.RegisterListener(&countingListener{
			name: "Kernel", cycles: 2, trace: &trace,
		})

		domain.Wake()
		Expect(engine.Run()).To(Succeed())

		whats := []string{}
		for _, e := range trace {
			whats = append(whats, fmt.Sprintf("%s:%s:%d", e.who, e.what, e.cycle))
		}

		Expect(whats).To(Equal([]string{
			"Dut:latch:1", "Kernel:edge:1", "Dut:eval:1", "Kernel:settle:1",
			"Dut:latch:2", "Kernel:edge:2", "Dut:eval:2", "Kernel:settle:2",
		}))
		Expect(trace[0].time).To(BeNumerically("~", 1e-9, 1e-15))
		Expect(trace[4].time).To(BeNumerically("~", 2e-9, 1e-15))
		Expect(domain.Cycle()).To(Equal(uint64(2)))
		Expect(domain.Running()).To(BeFalse())
		Expect(domain.Phase()).To(Equal(PhaseIdle))
	})

	It("should not latch devices while gated", func() {
		var domain *Domain
		domain = MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * timing.GHz).
			Build("Clk")
		domain.RegisterDevice(&traceDevice{"Dut", &domain, &trace})
		domain.RegisterListener(&countingListener{
			name: "Kernel", cycles: 2, trace: &trace,
		})

		domain.Gate()
		Expect(domain.Gated()).To(BeTrue())

		domain.Wake()
		Expect(engine.Run()).To(Succeed())

		Expect(domain.Cycle()).To(Equal(uint64(2)))
		for _, e := range trace {
			Expect(e.what).NotTo(Equal("latch"))
		}

		domain.Ungate()
		trace = nil
		domain.RegisterListener(&countingListener{
			name: "Again", cycles: 1, trace: &trace,
		})
		domain.Wake()
		Expect(engine.Run()).To(Succeed())

		Expect(trace[0].who).To(Equal("Dut"))
		Expect(trace[0].what).To(Equal("latch"))
		Expect(trace[0].cycle).To(Equal(uint64(3)))
	})

	It("should stop when no listener is active", func() {
		domain := MakeBuilder().WithEngine(engine).Build("Clk")
		domain.RegisterListener(&countingListener{
			name: "Kernel", cycles: 5, trace: &trace,
		})

		domain.Wake()
		Expect(engine.Run()).To(Succeed())

		Expect(domain.Cycle()).To(Equal(uint64(5)))
		Expect(engine.CurrentTime()).To(BeNumerically("~", 5e-9, 1e-15))
	})

	It("should resume after the current time when woken again", func() {
		domain := MakeBuilder().
			WithEngine(engine).
			WithFreq(250 * timing.MHz).
			Build("Clk")
		l := &countingListener{name: "Kernel", cycles: 1, trace: &trace}
		domain.RegisterListener(l)

		domain.Wake()
		Expect(engine.Run()).To(Succeed())

		l.cycles = 3
		domain.Wake()
		Expect(engine.Run()).To(Succeed())

		Expect(domain.Cycle()).To(Equal(uint64(3)))
		Expect(engine.CurrentTime()).To(BeNumerically("~", 12e-9, 1e-15))
	})

	It("should place the first edge at the phase offset", func() {
		domain := MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * timing.GHz).
			WithPhase(0.5e-9).
			Build("Clk")
		domain.RegisterListener(&countingListener{
			name: "Kernel", cycles: 2, trace: &trace,
		})

		domain.Wake()
		Expect(engine.Run()).To(Succeed())

		Expect(trace[0].time).To(BeNumerically("~", 0.5e-9, 1e-15))
		Expect(trace[2].time).To(BeNumerically("~", 1.5e-9, 1e-15))
	})

	It("should invoke edge and settle hooks", func() {
		domain := MakeBuilder().WithEngine(engine).Build("Clk")
		domain.RegisterListener(&countingListener{
			name: "Kernel", cycles: 1, trace: &trace,
		})

		poses := []string{}
		domain.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			poses = append(poses,
				fmt.Sprintf("%s:%d", ctx.Pos.Name, ctx.Item.(uint64)))
		}))

		domain.Wake()
		Expect(engine.Run()).To(Succeed())

		Expect(poses).To(Equal([]string{"ClockEdge:1", "ClockSettle:1"}))
	})

	It("should settle only after every same-time edge", func() {
		var fast, slow *Domain
		fast = MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * timing.GHz).
			Build("Fast")
		slow = MakeBuilder().
			WithEngine(engine).
			WithFreq(500 * timing.MHz).
			Build("Slow")
		fast.RegisterListener(&countingListener{
			name: "Fast", cycles: 4, trace: &trace,
		})
		slow.RegisterListener(&countingListener{
			name: "Slow", cycles: 2, trace: &trace,
		})

		fast.Wake()
		slow.Wake()
		Expect(engine.Run()).To(Succeed())

		Expect(fast.Cycle()).To(Equal(uint64(4)))
		Expect(slow.Cycle()).To(Equal(uint64(2)))

		for i, e := range trace {
			if e.what != "settle" {
				continue
			}

			for _, later := range trace[i+1:] {
				if later.what == "edge" {
					Expect(later.time).To(BeNumerically(">", e.time+1e-12))
				}
			}
		}
	})

	It("should refuse to build without an engine", func() {
		Expect(func() { MakeBuilder().Build("Clk") }).To(Panic())
	})
})
