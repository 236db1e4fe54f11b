package harness

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/timing"
)

var _ = Describe("Kernel", func() {
	var (
		engine *timing.SerialEngine
		domain *clock.Domain
		kernel *Kernel
		trace  []string
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		domain = clock.MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * timing.GHz).
			Build("Clk")
		kernel = NewKernel(domain, GinkgoLogr)
		trace = nil
	})

	AfterEach(func() {
		kernel.Shutdown()
	})

	It("should resume edge waiters in suspension order", func() {
		for _, name := range []string{"A", "B", "C"} {
			name := name
			kernel.Spawn(name, func(t *Task) error {
				for i := 0; i < 2; i++ {
					d := t.AwaitEdge()
					trace = append(trace, fmt.Sprintf("%s%d", name, d.Cycle()))
				}

				return nil
			})
		}

		Expect(engine.Run()).To(Succeed())
		Expect(trace).To(Equal([]string{"A2", "B2", "C2", "A3", "B3", "C3"}))
		Expect(kernel.Err()).NotTo(HaveOccurred())
		Expect(kernel.Tasks()).To(BeEmpty())
	})

	It("should finish every drive phase before sampling", func() {
		kernel.Spawn("Sampler", func(t *Task) error {
			for i := 0; i < 3; i++ {
				s := t.Settle()
				trace = append(trace, fmt.Sprintf("sample%d", s.Cycle()))
			}

			return nil
		})
		kernel.Spawn("Driver", func(t *Task) error {
			for i := 0; i < 3; i++ {
				d := t.AwaitEdge()
				trace = append(trace, fmt.Sprintf("drive%d", d.Cycle()))
			}

			return nil
		})

		Expect(engine.Run()).To(Succeed())
		Expect(trace).To(Equal([]string{
			"sample1",
			"drive2", "sample2",
			"drive3", "sample3",
			"drive4",
		}))
	})

	It("should hand out tokens that expire with their phase", func() {
		kernel.Spawn("Stale", func(t *Task) error {
			d := t.AwaitEdge()
			d.MustBeValid("drive")

			s := t.Settle()
			s.MustBeValid("sample")

			d.MustBeValid("drive")

			return nil
		})

		Expect(engine.Run()).To(Succeed())

		var pv *ProtocolViolation
		Expect(errors.As(kernel.Err(), &pv)).To(BeTrue())
		Expect(pv.Op).To(Equal("drive"))
	})

	It("should reject zero tokens", func() {
		Expect(func() { Drive{}.MustBeValid("drive") }).
			To(PanicWith(BeAssignableToTypeOf(&ProtocolViolation{})))
		Expect(func() { Settled{}.MustBeValid("sample") }).
			To(PanicWith(BeAssignableToTypeOf(&ProtocolViolation{})))
	})

	It("should cancel at a suspension point and run deferred functions", func() {
		cleaned := false
		monitor := kernel.SpawnDaemon("Monitor", func(t *Task) error {
			defer func() { cleaned = true }()

			for {
				t.Settle()
			}
		})

		kernel.Spawn("Main", func(t *Task) error {
			t.AwaitEdges(3)
			monitor.Cancel()

			return nil
		})

		Expect(engine.Run()).To(Succeed())
		Expect(cleaned).To(BeTrue())
		Expect(monitor.Done()).To(BeTrue())
		Expect(monitor.Err()).To(MatchError(ErrCancelled))
		Expect(kernel.Err()).NotTo(HaveOccurred())
	})

	Context("when a task with a cancel cleanup is cancelled", func() {
		var cleanups []string

		spawnHolder := func() *Task {
			return kernel.Spawn("Holder", func(t *Task) error {
				t.OnCancel(func(d Drive) {
					d.MustBeValid("cleanup")
					cleanups = append(cleanups, fmt.Sprintf("cleanup%d", d.Cycle()))
				})

				for {
					t.AwaitEdge()
				}
			})
		}

		spawnCanceller := func(holder **Task) {
			kernel.Spawn("Canceller", func(t *Task) error {
				t.AwaitEdges(2)
				(*holder).Cancel()

				return nil
			})
		}

		BeforeEach(func() {
			cleanups = nil
		})

		It("should clean up at once if the task has not driven yet", func() {
			var holder *Task
			spawnCanceller(&holder)
			holder = spawnHolder()

			Expect(engine.Run()).To(Succeed())
			Expect(cleanups).To(Equal([]string{"cleanup3"}))
			Expect(holder.Err()).To(MatchError(ErrCancelled))
		})

		It("should clean up at the next edge if the task has driven", func() {
			holder := spawnHolder()
			spawnCanceller(&holder)

			Expect(engine.Run()).To(Succeed())
			Expect(cleanups).To(Equal([]string{"cleanup4"}))
			Expect(domain.Cycle()).To(Equal(uint64(4)))
		})

		It("should skip released cleanups", func() {
			holder := kernel.Spawn("Holder", func(t *Task) error {
				release := t.OnCancel(func(d Drive) {
					cleanups = append(cleanups, "cleanup")
				})
				release()

				for {
					t.AwaitEdge()
				}
			})
			spawnCanceller(&holder)

			Expect(engine.Run()).To(Succeed())
			Expect(cleanups).To(BeEmpty())
		})
	})

	It("should stop the clock when only daemons remain", func() {
		daemon := kernel.SpawnDaemon("Monitor", func(t *Task) error {
			for {
				t.Settle()
			}
		})

		kernel.Spawn("Main", func(t *Task) error {
			t.AwaitEdges(4)
			return nil
		})

		Expect(engine.Run()).To(Succeed())
		Expect(domain.Cycle()).To(Equal(uint64(5)))
		Expect(daemon.Done()).To(BeFalse())

		kernel.Shutdown()

		Expect(daemon.Done()).To(BeTrue())
		Expect(kernel.Tasks()).To(BeEmpty())
	})

	It("should join tasks", func() {
		var joinedAt uint64

		kernel.Spawn("Parent", func(t *Task) error {
			child := t.Spawn("Child", func(t *Task) error {
				t.AwaitEdges(3)
				return nil
			})

			err := t.Join(child)
			joinedAt = t.Kernel().Cycle()

			return err
		})

		Expect(engine.Run()).To(Succeed())
		Expect(kernel.Err()).NotTo(HaveOccurred())
		Expect(joinedAt).To(Equal(uint64(4)))
	})

	It("should keep the first failure and cancel the other tasks", func() {
		first := &Failure{Kind: DataMismatch, Signal: "rd_data"}
		second := &Failure{Kind: FlagMismatch, Signal: "full"}
		var bystander *Task

		kernel.Begin("Demo", 0)
		kernel.Spawn("First", func(t *Task) error {
			t.AwaitEdges(2)
			return first
		})
		kernel.Spawn("Second", func(t *Task) error {
			t.AwaitEdges(2)
			return second
		})
		bystander = kernel.Spawn("Bystander", func(t *Task) error {
			for {
				t.AwaitEdge()
			}
		})

		Expect(engine.Run()).To(Succeed())
		Expect(kernel.Err()).To(BeIdenticalTo(first))
		Expect(first.Scenario).To(Equal("Demo"))
		Expect(first.Cycle).To(Equal(uint64(3)))
		Expect(bystander.Err()).To(MatchError(ErrCancelled))
	})

	It("should fail tasks through Fail", func() {
		kernel.Spawn("Checker", func(t *Task) error {
			t.AwaitEdge()
			t.Fail(&Failure{Kind: Desynchronization})

			return nil
		})

		Expect(engine.Run()).To(Succeed())

		kind, ok := KindOf(kernel.Err())
		Expect(ok).To(BeTrue())
		Expect(kind).To(Equal(Desynchronization))
	})

	It("should turn panics into failures", func() {
		kernel.Spawn("Broken", func(t *Task) error {
			t.AwaitEdge()
			panic("boom")
		})

		Expect(engine.Run()).To(Succeed())
		Expect(kernel.Err()).To(MatchError(ContainSubstring("boom")))
	})

	It("should fail a scenario that exceeds its cycle budget", func() {
		kernel.Begin("Endless", 5)
		kernel.Spawn("Spinner", func(t *Task) error {
			for {
				t.AwaitEdge()
			}
		})

		Expect(engine.Run()).To(Succeed())

		kind, _ := KindOf(kernel.Err())
		Expect(kind).To(Equal(LivenessFailure))
		Expect(domain.Cycle()).To(Equal(uint64(6)))
	})

	It("should refuse suspension from a task that is not running", func() {
		var other *Task

		other = kernel.Spawn("Other", func(t *Task) error {
			t.AwaitEdges(5)
			return nil
		})
		kernel.Spawn("Intruder", func(t *Task) error {
			other.AwaitEdge()
			return nil
		})

		Expect(engine.Run()).To(Succeed())

		var pv *ProtocolViolation
		Expect(errors.As(kernel.Err(), &pv)).To(BeTrue())
		Expect(pv.Op).To(Equal("AwaitEdge"))
	})
})

var _ = Describe("WaitUntil", func() {
	var (
		engine *timing.SerialEngine
		kernel *Kernel
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		domain := clock.MakeBuilder().WithEngine(engine).Build("Clk")
		kernel = NewKernel(domain, GinkgoLogr)
	})

	It("should return once the state is reached", func() {
		var reachedAt uint64

		kernel.Spawn("Waiter", func(t *Task) error {
			err := WaitUntil(t, 10, "counter", func(s Settled) (bool, string) {
				return s.Cycle() >= 4, fmt.Sprintf("cycle %d", s.Cycle())
			})
			reachedAt = t.Kernel().Cycle()

			return err
		})

		Expect(engine.Run()).To(Succeed())
		Expect(kernel.Err()).NotTo(HaveOccurred())
		Expect(reachedAt).To(Equal(uint64(4)))
	})

	It("should report the last seen state on expiry", func() {
		kernel.Spawn("Waiter", func(t *Task) error {
			return WaitUntil(t, 3, "full", func(s Settled) (bool, string) {
				return false, fmt.Sprintf("full=0 at %d", s.Cycle())
			})
		})

		Expect(engine.Run()).To(Succeed())

		var f *Failure
		Expect(errors.As(kernel.Err(), &f)).To(BeTrue())
		Expect(f.Kind).To(Equal(LivenessFailure))
		Expect(f.Signal).To(Equal("full"))
		Expect(f.Detail).To(ContainSubstring("full=0 at 3"))
	})
})
