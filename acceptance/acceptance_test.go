package acceptance_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fpgasim/flashsim/acceptance"
	"github.com/fpgasim/flashsim/controller"
	"github.com/fpgasim/flashsim/flash"
	"github.com/fpgasim/flashsim/harness"
	"github.com/fpgasim/flashsim/sim"
	"github.com/fpgasim/flashsim/wire"
)

var _ = Describe("Acceptance suite", func() {
	DescribeTable("should pass end to end on every lane width",
		func(mode wire.IOMode) {
			r := acceptance.NewRig(mode, 1)

			Expect(acceptance.Run(r)).To(Succeed())
		},
		Entry("single", wire.Single),
		Entry("dual", wire.Dual),
		Entry("quad", wire.Quad),
	)

	It("should be reproducible for a fixed seed", func() {
		a := acceptance.NewRig(wire.Single, 7)
		b := acceptance.NewRig(wire.Single, 7)

		Expect(a.Device.Word(0x1234 &^ 3)).
			To(Equal(b.Device.Word(0x1234 &^ 3)))
	})

	It("should vary the image across seeds", func() {
		a := acceptance.NewRig(wire.Single, 1)
		b := acceptance.NewRig(wire.Single, 2)

		same := 0
		for addr := uint32(0); addr < 64; addr += 4 {
			if a.Device.Word(addr) == b.Device.Word(addr) {
				same++
			}
		}
		Expect(same).To(BeNumerically("<", 16))
	})

	It("should report the failing address on a mismatch", func() {
		// A controller that waits fewer dummy cycles than the device
		// needs reads misaligned data.
		engine := sim.NewClock()
		dev := flash.MakeBuilder().
			WithCapacity(1 << 20).
			WithDummyCycles(8).
			Build("Flash")
		core := controller.MakeBuilder().
			WithIOMode(wire.Dual).
			WithDummyCycles(4).
			Build("Ctrl")
		harness.NewTestbench(engine, core, dev)

		r := &acceptance.Rig{
			Engine: engine,
			Device: dev,
			Core:   core,
			Driver: harness.NewDriver(engine, core),
		}

		err := acceptance.Run(r)

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("expected"))
	})
})
