package timing

import (
	"github.com/go-logr/logr/funcr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hwconform/sim/hooking"
)

var _ = Describe("EventLogger", func() {
	var (
		mockCtrl *gomock.Controller
		lines    []string
		logger   *EventLogger
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		lines = nil
		logger = NewEventLogger(funcr.New(func(_, args string) {
			lines = append(lines, args)
		}, funcr.Options{}))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should log events handled by the engine", func() {
		engine := NewSerialEngine()
		engine.AcceptHook(logger)

		handler := NewMockHandler(mockCtrl)
		evt := NewMockEvent(mockCtrl)
		expectEvent(evt, 2e-9, handler, true)
		handler.EXPECT().Handle(evt).Return(nil)

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())

		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(ContainSubstring(`"kind"="secondary"`))
		Expect(lines[0]).To(ContainSubstring(`"time"="2.000ns"`))
	})

	It("should ignore other positions", func() {
		logger.Func(hooking.HookCtx{Pos: HookPosAfterEvent})
		logger.Func(hooking.HookCtx{Pos: HookPosBeforeEvent, Item: 42})

		Expect(lines).To(BeEmpty())
	})
})
