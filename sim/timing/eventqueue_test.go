package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubEvent struct {
	*EventBase
	label string
}

func newStubEvent(t VTimeInSec, label string) stubEvent {
	return stubEvent{EventBase: NewEventBase(t, nil), label: label}
}

var _ = Describe("EventQueue", func() {
	var queue *EventQueueImpl

	BeforeEach(func() {
		queue = NewEventQueue()
	})

	It("should pop in time order", func() {
		queue.Push(newStubEvent(3, "c"))
		queue.Push(newStubEvent(1, "a"))
		queue.Push(newStubEvent(2, "b"))

		Expect(queue.Len()).To(Equal(3))
		Expect(queue.Peek().(stubEvent).label).To(Equal("a"))
		Expect(queue.Pop().(stubEvent).label).To(Equal("a"))
		Expect(queue.Pop().(stubEvent).label).To(Equal("b"))
		Expect(queue.Pop().(stubEvent).label).To(Equal("c"))
		Expect(queue.Pop()).To(BeNil())
	})

	It("should keep insertion order for same-time events", func() {
		labels := []string{"e0", "e1", "e2", "e3", "e4", "e5", "e6", "e7"}
		for _, l := range labels {
			queue.Push(newStubEvent(5, l))
		}

		popped := []string{}
		for queue.Len() > 0 {
			popped = append(popped, queue.Pop().(stubEvent).label)
		}

		Expect(popped).To(Equal(labels))
	})
})
