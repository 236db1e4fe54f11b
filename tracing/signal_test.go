package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/hooking"
	"github.com/sarchlab/hwconform/sim/timing"
)

type counterSource struct{}

func (counterSource) Signals(s harness.Settled) []Signal {
	s.MustBeValid("Signals")

	return []Signal{
		{Name: "count", Value: s.Cycle() * 10},
		{Name: "const", Value: 1},
	}
}

var _ = Describe("SignalSampler", func() {
	var (
		engine   *timing.SerialEngine
		domain   *clock.Domain
		kernel   *harness.Kernel
		registry *Registry
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		domain = clock.MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * timing.GHz).
			Build("Clk")
		kernel = harness.NewKernel(domain, GinkgoLogr)
		registry = NewRegistry(0)
	})

	AfterEach(func() {
		kernel.Shutdown()
	})

	run := func(sampler *SignalSampler, edges int) {
		kernel.SpawnDaemon("Sampler", sampler.Run)
		kernel.Spawn("Stimulus", func(t *harness.Task) error {
			t.AwaitEdges(edges)
			return nil
		})

		Expect(engine.Run()).To(Succeed())
		Expect(kernel.Err()).NotTo(HaveOccurred())
	}

	It("should publish every signal at every settle point", func() {
		sampler := NewSignalSampler("Sampler", counterSource{})
		sampler.AcceptHook(registry)

		run(sampler, 3)

		Expect(registry.Signals()).To(Equal([]string{"const", "count"}))
		Expect(registry.Values("count")).To(Equal([]uint64{10, 20, 30, 40}))
		Expect(registry.Values("const")).To(Equal([]uint64{1, 1, 1, 1}))

		series := registry.Series("count")
		Expect(series[1].Cycle).To(Equal(uint64(2)))
		Expect(series[1].Time).To(BeNumerically("~", 2e-9, 1e-15))

		latest, ok := registry.Latest("count")
		Expect(ok).To(BeTrue())
		Expect(latest.Value).To(Equal(uint64(40)))
	})

	It("should only publish the selected signals", func() {
		sampler := NewSignalSampler("Sampler", counterSource{}, "count")
		sampler.AcceptHook(registry)

		run(sampler, 1)

		Expect(registry.Signals()).To(Equal([]string{"count"}))
	})

	It("should not read the source when no hook is attached", func() {
		sampler := NewSignalSampler("Sampler", counterSource{})
		run(sampler, 2)

		Expect(registry.Signals()).To(BeEmpty())
	})
})

var _ = Describe("Registry", func() {
	publish := func(r *Registry, cycle uint64) {
		r.Func(hooking.HookCtx{
			Pos:  HookPosSignalSample,
			Item: Sample{Signal: "wr_en", Cycle: cycle, Value: cycle % 2},
		})
	}

	It("should drop the oldest samples beyond the limit", func() {
		r := NewRegistry(3)
		for c := uint64(1); c <= 5; c++ {
			publish(r, c)
		}

		series := r.Series("wr_en")
		Expect(series).To(HaveLen(3))
		Expect(series[0].Cycle).To(Equal(uint64(3)))
		Expect(r.Values("wr_en")).To(Equal([]uint64{1, 0, 1}))
	})

	It("should ignore other hook positions", func() {
		r := NewRegistry(0)
		r.Func(hooking.HookCtx{
			Pos:  &hooking.HookPos{Name: "Other"},
			Item: Sample{Signal: "wr_en"},
		})

		Expect(r.Signals()).To(BeEmpty())
		_, ok := r.Latest("wr_en")
		Expect(ok).To(BeFalse())
	})

	It("should forget everything on clear", func() {
		r := NewRegistry(0)
		publish(r, 1)
		r.Clear()

		Expect(r.Series("wr_en")).To(BeEmpty())
	})
})
