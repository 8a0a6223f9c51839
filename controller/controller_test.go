package controller_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fpgasim/flashsim/controller"
	"github.com/fpgasim/flashsim/wire"
)

var _ = Describe("Controller", func() {
	var c *controller.Comp

	BeforeEach(func() {
		c = controller.MakeBuilder().Build("Ctrl")
	})

	It("should keep the device deselected while idle", func() {
		for i := 0; i < 8; i++ {
			c.Tick()

			Expect(c.Pads().CSn).To(BeTrue())
			Expect(c.Pads().SCK).To(BeFalse())
			Expect(c.Pads().OutEn).To(Equal(uint8(0)))
		}
	})

	It("should acknowledge a control read in a single tick", func() {
		bus := c.Bus()
		bus.Cyc = true
		bus.CtrlStb = true
		bus.Addr = controller.RegControl

		c.Tick()

		Expect(bus.Ack).To(BeTrue())
		Expect(bus.RData).To(Equal(uint32(0)))
	})

	It("should acknowledge a write-protected write without pad activity",
		func() {
			bus := c.Bus()
			bus.Cyc = true
			bus.DataStb = true
			bus.WE = true
			bus.Addr = 0x1000
			bus.WData = 0xDEADBEEF

			c.Tick()
			Expect(bus.Ack).To(BeTrue())

			bus.Cyc = false
			bus.DataStb = false
			bus.WE = false
			for i := 0; i < 8; i++ {
				c.Tick()
				Expect(c.Pads().CSn).To(BeTrue())
			}
		})

	It("should never acknowledge after the cycle line drops", func() {
		bus := c.Bus()
		bus.Cyc = true
		bus.DataStb = true
		bus.Addr = 0x0

		c.Tick()
		bus.Cyc = false
		bus.DataStb = false

		for i := 0; i < 256; i++ {
			c.Tick()
			Expect(bus.Ack).To(BeFalse())
		}
	})

	It("should stall while a control sequence is on the pads", func() {
		bus := c.Bus()
		bus.Cyc = true
		bus.CtrlStb = true
		bus.WE = true
		bus.Addr = controller.RegControl
		bus.WData = controller.DisableWP

		c.Tick()
		Expect(bus.Stall).To(BeTrue())

		sawSelect := false
		for i := 0; i < 64 && !bus.Ack; i++ {
			c.Tick()
			if !c.Pads().CSn {
				sawSelect = true
			}
		}

		Expect(bus.Ack).To(BeTrue())
		Expect(sawSelect).To(BeTrue())
	})

	It("should shift a user-mode octet out MSB first", func() {
		bus := c.Bus()
		bus.Cyc = true
		bus.CtrlStb = true
		bus.WE = true
		bus.Addr = controller.RegUser
		bus.WData = controller.CfgUserMode | controller.CfgDir | 0x9F

		var bits []uint8
		for i := 0; i < 64 && !bus.Ack; i++ {
			c.Tick()
			if c.Pads().OutEn == 0x01 && c.Pads().SCK {
				bits = append(bits, c.Pads().Out&1)
			}
		}

		Expect(bus.Ack).To(BeTrue())
		Expect(bits).To(HaveLen(8))

		var octet uint8
		for _, b := range bits {
			octet = octet<<1 | b
		}
		Expect(octet).To(Equal(uint8(0x9F)))

		// The device stays selected for the data phase that follows.
		c.Tick()
		Expect(c.Pads().CSn).To(BeFalse())
	})

	It("should report the user octet width of the configured mode", func() {
		c = controller.MakeBuilder().
			WithIOMode(wire.Quad).
			Build("Ctrl")

		bus := c.Bus()
		bus.Cyc = true
		bus.CtrlStb = true
		bus.WE = true
		bus.Addr = controller.RegUser
		bus.WData = controller.CfgUserMode | controller.CfgDir |
			controller.CfgSpeed | 0xA5

		clocked := 0
		for i := 0; i < 64 && !bus.Ack; i++ {
			c.Tick()
			if c.Pads().OutEn == 0x0F && c.Pads().SCK {
				clocked++
			}
		}

		Expect(bus.Ack).To(BeTrue())
		Expect(clocked).To(Equal(2))
	})

	It("should reject a page size that is not a power of two", func() {
		Expect(func() {
			controller.MakeBuilder().WithPageSize(3).Build("Ctrl")
		}).To(Panic())
	})
})
