package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		var f = 1 * GHz
		Expect(f.Period()).To(BeNumerically("==", 1e-9))
	})

	It("should get this tick", func() {
		var f = 1 * Hz
		Expect(f.ThisTick(1)).To(BeNumerically("~", 1, 1e-12))
	})

	It("should get the next tick", func() {
		var f = 1 * GHz
		Expect(f.NextTick(102.000000001)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get the next tick, if currTime is not on a tick", func() {
		var f = 1 * GHz
		Expect(f.NextTick(102.0000000011)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get the n cycles later", func() {
		var f = 1 * GHz
		Expect(f.NCyclesLater(12, 102.000000001)).
			To(BeNumerically("~", 102.000000013, 1e-12))
	})

	It("should get the no-earlier-than time, off tick", func() {
		var f = 1 * GHz
		Expect(f.NoEarlierThan(102.0000000011)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should convert a period into a frequency", func() {
		Expect(float64(FreqForPeriod(4e-9))).
			To(BeNumerically("~", 250e6, 1e-3))
	})

	DescribeTable("parsing",
		func(in string, want Freq) {
			f, err := ParseFreq(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(float64(f)).To(BeNumerically("~", float64(want), 1e-6))
		},
		Entry("MHz", "250MHz", 250*MHz),
		Entry("GHz with space", "1 GHz", 1*GHz),
		Entry("kHz", "10kHz", 10*KHz),
		Entry("bare number", "100", 100*Hz),
	)

	It("should reject bad frequencies", func() {
		_, err := ParseFreq("fast")
		Expect(err).To(HaveOccurred())

		_, err = ParseFreq("-1MHz")
		Expect(err).To(HaveOccurred())
	})

	It("should print with units", func() {
		Expect((250 * MHz).String()).To(Equal("250MHz"))
		Expect((1 * GHz).String()).To(Equal("1GHz"))
	})

	It("should format time in ns", func() {
		Expect(FormatTime(4e-9)).To(Equal("4.000ns"))
	})
})
