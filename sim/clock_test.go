package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type posRecorder struct {
	positions []*HookPos
}

func (r *posRecorder) Func(ctx HookCtx) {
	r.positions = append(r.positions, ctx.Pos)
}

var _ = Describe("Clock", func() {
	var (
		mockCtrl *gomock.Controller
		clock    *Clock
		ticker1  *MockTicker
		ticker2  *MockTicker
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		ticker1 = NewMockTicker(mockCtrl)
		ticker2 = NewMockTicker(mockCtrl)
		clock = NewClock()
		clock.Register(ticker1)
		clock.Register(ticker2)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should evaluate every registered ticker once per edge", func() {
		ticker1.EXPECT().Tick()
		ticker2.EXPECT().Tick()

		clock.Tick()
	})

	It("should count completed edges", func() {
		ticker1.EXPECT().Tick().Times(5)
		ticker2.EXPECT().Tick().Times(5)

		clock.TickN(5)

		Expect(clock.CurrentCycle()).To(Equal(uint64(5)))
	})

	It("should invoke hooks around each edge", func() {
		recorder := &posRecorder{}
		clock.AcceptHook(recorder)

		ticker1.EXPECT().Tick()
		ticker2.EXPECT().Tick()

		clock.Tick()

		Expect(recorder.positions).To(Equal([]*HookPos{
			HookPosBeforeEdge,
			HookPosAfterEdge,
		}))
	})
})
