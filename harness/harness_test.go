package harness_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fpgasim/flashsim/controller"
	"github.com/fpgasim/flashsim/flash"
	"github.com/fpgasim/flashsim/harness"
	"github.com/fpgasim/flashsim/sim"
	"github.com/fpgasim/flashsim/wire"
)

type rig struct {
	engine sim.Engine
	dev    *flash.Comp
	core   *controller.Comp
	driver *harness.Driver
}

func newRig(mode wire.IOMode) *rig {
	engine := sim.NewClock()

	dev := flash.MakeBuilder().
		WithCapacity(1 << 20).
		WithProgramDelay(32).
		WithEraseDelay(64).
		Build("Flash")

	core := controller.MakeBuilder().
		WithIOMode(mode).
		WithDummyCycles(dev.DummyCycles()).
		WithPageSize(dev.PageSize()).
		Build("Ctrl")

	harness.NewTestbench(engine, core, dev)

	return &rig{
		engine: engine,
		dev:    dev,
		core:   core,
		driver: harness.NewDriver(engine, core),
	}
}

var _ = Describe("Testbench with a real controller and device", func() {
	It("should read back a stored word", func() {
		r := newRig(wire.Single)
		r.dev.SetWord(0x100, 0xDEADBEEF)

		v, err := r.driver.Read(0x100)

		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(0xDEADBEEF)))
	})

	It("should read erased memory as all ones", func() {
		r := newRig(wire.Single)

		v, err := r.driver.Read(0x4000)

		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(0xFFFFFFFF)))
	})

	It("should continue a sequential read without re-addressing", func() {
		r := newRig(wire.Single)
		r.dev.SetWord(0x200, 0x01020304)
		r.dev.SetWord(0x204, 0x05060708)
		r.dev.SetWord(0x208, 0x090A0B0C)

		v0, err := r.driver.Read(0x200)
		Expect(err).ToNot(HaveOccurred())

		before := r.engine.CurrentCycle()
		v1, err := r.driver.Read(0x204)
		Expect(err).ToNot(HaveOccurred())
		seqCost := r.engine.CurrentCycle() - before

		v2, err := r.driver.Read(0x208)
		Expect(err).ToNot(HaveOccurred())

		Expect(v0).To(Equal(uint32(0x01020304)))
		Expect(v1).To(Equal(uint32(0x05060708)))
		Expect(v2).To(Equal(uint32(0x090A0B0C)))

		// A continued burst skips command, address and dummy cycles.
		Expect(seqCost).To(BeNumerically("<", 40))
	})

	It("should restart the burst on a non-sequential address", func() {
		r := newRig(wire.Single)
		r.dev.SetWord(0x300, 0x11111111)
		r.dev.SetWord(0x700, 0x22222222)

		v0, err := r.driver.Read(0x300)
		Expect(err).ToNot(HaveOccurred())
		v1, err := r.driver.Read(0x700)
		Expect(err).ToNot(HaveOccurred())
		v2, err := r.driver.Read(0x300)
		Expect(err).ToNot(HaveOccurred())

		Expect(v0).To(Equal(uint32(0x11111111)))
		Expect(v1).To(Equal(uint32(0x22222222)))
		Expect(v2).To(Equal(uint32(0x11111111)))
	})

	It("should read a vector of words", func() {
		r := newRig(wire.Single)
		want := make([]uint32, 16)
		for i := range want {
			want[i] = uint32(i)*0x01010101 + 7
			r.dev.SetWord(0x1000+uint32(i)*4, want[i])
		}

		got := make([]uint32, len(want))
		Expect(r.driver.ReadV(0x1000, got)).To(Succeed())
		Expect(got).To(Equal(want))
	})

	DescribeTable("should read correctly on every lane width",
		func(mode wire.IOMode) {
			r := newRig(mode)
			r.dev.SetWord(0x800, 0xCAFEF00D)
			r.dev.SetWord(0x804, 0x8BADF00D)

			v0, err := r.driver.Read(0x800)
			Expect(err).ToNot(HaveOccurred())
			v1, err := r.driver.Read(0x804)
			Expect(err).ToNot(HaveOccurred())

			Expect(v0).To(Equal(uint32(0xCAFEF00D)))
			Expect(v1).To(Equal(uint32(0x8BADF00D)))
		},
		Entry("single", wire.Single),
		Entry("dual", wire.Dual),
		Entry("quad", wire.Quad),
	)

	It("should answer the identification over user mode", func() {
		r := newRig(wire.Single)

		id, err := r.driver.ReadID()

		Expect(err).ToNot(HaveOccurred())
		Expect(id).To(Equal(uint32(0x20BA1810)))
	})

	It("should answer the idle status over user mode", func() {
		r := newRig(wire.Single)

		sr, err := r.driver.Status()

		Expect(err).ToNot(HaveOccurred())
		Expect(sr).To(Equal(byte(0x1c)))
	})

	It("should keep memory mapping working after user mode", func() {
		r := newRig(wire.Single)
		r.dev.SetWord(0x40, 0x13572468)

		_, err := r.driver.ReadID()
		Expect(err).ToNot(HaveOccurred())

		v, err := r.driver.Read(0x40)
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(0x13572468)))
	})

	It("should program a word through the bus", func() {
		r := newRig(wire.Single)

		Expect(r.driver.PageProgram(0x2000, []uint32{0x12345678})).
			To(Succeed())

		v, err := r.driver.Read(0x2000)
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(0x12345678)))
		Expect(r.dev.Word(0x2000)).To(Equal(uint32(0x12345678)))
	})

	It("should program a burst of words", func() {
		r := newRig(wire.Single)
		buf := []uint32{0x00112233, 0x44556677, 0x8899AABB, 0xCCDDEEFF}

		Expect(r.driver.PageProgram(0x3000, buf)).To(Succeed())

		got := make([]uint32, len(buf))
		Expect(r.driver.ReadV(0x3000, got)).To(Succeed())
		Expect(got).To(Equal(buf))
	})

	It("should ignore writes while write protect is on", func() {
		r := newRig(wire.Single)
		r.dev.SetWord(0x5000, 0xA5A5A5A5)

		Expect(r.driver.Write(0x5000, 0)).To(Succeed())

		Expect(r.dev.Word(0x5000)).To(Equal(uint32(0xA5A5A5A5)))
	})

	It("should only clear bits when overprogramming", func() {
		r := newRig(wire.Single)

		Expect(r.driver.PageProgram(0x6000, []uint32{0xFF00FF00})).
			To(Succeed())
		Expect(r.driver.PageProgram(0x6000, []uint32{0x0FF00FF0})).
			To(Succeed())

		Expect(r.dev.Word(0x6000)).To(Equal(uint32(0xFF00FF00 & 0x0FF00FF0)))
	})

	It("should erase one sector and leave its neighbors", func() {
		r := newRig(wire.Single)
		r.dev.SetWord(0xFFFC, 0x01020304)
		r.dev.SetWord(0x10000, 0x05060708)
		r.dev.SetWord(0x1FFFC, 0x090A0B0C)
		r.dev.SetWord(0x20000, 0x0D0E0F10)

		Expect(r.driver.EraseSector(0x10000)).To(Succeed())

		Expect(r.dev.Word(0x10000)).To(Equal(uint32(0xFFFFFFFF)))
		Expect(r.dev.Word(0x1FFFC)).To(Equal(uint32(0xFFFFFFFF)))
		Expect(r.dev.Word(0xFFFC)).To(Equal(uint32(0x01020304)))
		Expect(r.dev.Word(0x20000)).To(Equal(uint32(0x0D0E0F10)))
	})

	It("should split a program across page boundaries", func() {
		r := newRig(wire.Single)
		buf := make([]uint32, 96) // 384 bytes, crosses one page boundary
		for i := range buf {
			buf[i] = uint32(i) * 0x11111111
		}

		Expect(r.driver.Program(0x7000, buf, r.dev.PageSize())).
			To(Succeed())

		got := make([]uint32, len(buf))
		Expect(r.driver.ReadV(0x7000, got)).To(Succeed())
		Expect(got).To(Equal(buf))
	})

	It("should erase, program and verify in quad mode", func() {
		r := newRig(wire.Quad)
		r.dev.SetWord(0x10010, 0)

		Expect(r.driver.EraseSector(0x10000)).To(Succeed())
		Expect(r.driver.PageProgram(0x10010, []uint32{0xFEEDC0DE})).
			To(Succeed())

		v, err := r.driver.Read(0x10010)
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(0xFEEDC0DE)))
	})
})
