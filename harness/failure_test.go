package harness

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Failure", func() {
	It("should name the signal, values and time", func() {
		f := &Failure{
			Kind:     DataMismatch,
			Scenario: "FWFT",
			Signal:   "rd_data",
			Expected: uint64(0x1234),
			Actual:   uint64(0x1235),
			Cycle:    7,
			Time:     28e-9,
			Detail:   "head of queue",
		}

		Expect(f.Error()).To(Equal(
			"data mismatch in FWFT on rd_data at cycle 7 (28.000ns): " +
				"expected 0x1234, actual 0x1235: head of queue"))
	})

	It("should print flags as bits", func() {
		f := &Failure{
			Kind:     FlagMismatch,
			Signal:   "full",
			Expected: true,
			Actual:   false,
			Cycle:    3,
			Time:     3e-9,
		}

		Expect(f.Error()).To(Equal(
			"flag mismatch on full at cycle 3 (3.000ns): expected 1, actual 0"))
	})

	It("should be found through wrapping", func() {
		err := fmt.Errorf("scenario: %w",
			&Failure{Kind: FlowControlViolation})

		kind, ok := KindOf(err)
		Expect(ok).To(BeTrue())
		Expect(kind).To(Equal(FlowControlViolation))

		_, ok = KindOf(fmt.Errorf("plain"))
		Expect(ok).To(BeFalse())
	})
})
