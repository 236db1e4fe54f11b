package fifo

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/timing"
	"github.com/sarchlab/hwconform/tracing"
)

var _ = Describe("Adapter", func() {
	var (
		mockCtrl *gomock.Controller
		device   *MockDevice
		engine   *timing.SerialEngine
		kernel   *harness.Kernel
		adapter  *Adapter
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		device = NewMockDevice(mockCtrl)
		device.EXPECT().Params().Return(testParams)

		engine = timing.NewSerialEngine()
		domain := clock.MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * timing.GHz).
			Build("Clk")
		kernel = harness.NewKernel(domain, GinkgoLogr)
		adapter = NewAdapter(device)
	})

	AfterEach(func() {
		kernel.Shutdown()
		mockCtrl.Finish()
	})

	expectOutputs := func(f Flags, rdData uint64) {
		device.EXPECT().Empty().Return(f.Empty).AnyTimes()
		device.EXPECT().Full().Return(f.Full).AnyTimes()
		device.EXPECT().AlmostEmpty().Return(f.AlmostEmpty).AnyTimes()
		device.EXPECT().AlmostFull().Return(f.AlmostFull).AnyTimes()
		device.EXPECT().RdData().Return(rdData).AnyTimes()
	}

	run := func(fn func(t *harness.Task) error) error {
		kernel.Spawn("Test", fn)
		Expect(engine.Run()).To(Succeed())

		return kernel.Err()
	}

	It("should drive inputs in the drive phase", func() {
		gomock.InOrder(
			device.EXPECT().SetWrData(uint64(0x34)),
			device.EXPECT().SetWrEn(true),
			device.EXPECT().SetRdEn(true),
			device.EXPECT().SetResetN(true),
		)

		err := run(func(t *harness.Task) error {
			d := t.AwaitEdge()
			adapter.DriveWrData(d, 0x1234)
			adapter.DriveWrEn(d, true)
			adapter.DriveRdEn(d, true)
			adapter.DriveResetN(d, true)

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(adapter.Driven()).To(Equal(Inputs{
			ResetN: true, WrEn: true, WrData: 0x34, RdEn: true,
		}))
	})

	It("should sample outputs and driven inputs at the settle point", func() {
		expectOutputs(Flags{AlmostFull: true}, 0x5a)
		device.EXPECT().SetWrEn(true)

		var sample Sample
		var flags Flags

		err := run(func(t *harness.Task) error {
			d := t.AwaitEdge()
			flags = adapter.Flags(d)
			adapter.DriveWrEn(d, true)

			sample = adapter.Sample(t.Settle())

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(flags).To(Equal(Flags{AlmostFull: true}))
		Expect(sample.Cycle).To(Equal(uint64(2)))
		Expect(sample.Time).To(BeNumerically("~", 2e-9, 1e-15))
		Expect(sample.WrEn).To(BeTrue())
		Expect(sample.RdData).To(Equal(uint64(0x5a)))
		Expect(sample.String()).To(Equal(
			"resetn=0 wr_en=1 wr_data=0x0 rd_en=0 | " +
				"empty=0 full=0 almost_empty=0 almost_full=1 rd_data=0x5a"))
	})

	It("should list every signal for tracing", func() {
		expectOutputs(Flags{Empty: true, AlmostEmpty: true}, 0)

		var signals []tracing.Signal

		err := run(func(t *harness.Task) error {
			signals = adapter.Signals(t.Settle())
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(signals).To(HaveLen(9))
		Expect(signals[4]).To(Equal(tracing.Signal{Name: SignalEmpty, Value: 1}))
		Expect(signals[8]).To(Equal(tracing.Signal{Name: SignalRdData, Value: 0}))
	})

	It("should refuse to drive with an expired token", func() {
		err := run(func(t *harness.Task) error {
			d := t.AwaitEdge()
			t.Settle()
			adapter.DriveWrEn(d, true)

			return nil
		})

		var pv *harness.ProtocolViolation
		Expect(err).To(BeAssignableToTypeOf(pv))
		Expect(err.Error()).To(ContainSubstring("DriveWrEn"))
	})

	It("should refuse to sample with an expired token", func() {
		err := run(func(t *harness.Task) error {
			s := t.Settle()
			t.AwaitEdge()
			adapter.Sample(s)

			return nil
		})

		Expect(err).To(MatchError(ContainSubstring("Sample")))
	})
})
