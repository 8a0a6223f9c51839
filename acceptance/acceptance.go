// Package acceptance runs the bring-up scenario suite against a controller
// and device pair: identification, status, single and vector reads, sector
// erase, and page programming, each verified word for word against the
// device array.
package acceptance

import (
	"fmt"
	"math/rand/v2"

	"github.com/fpgasim/flashsim/controller"
	"github.com/fpgasim/flashsim/flash"
	"github.com/fpgasim/flashsim/harness"
	"github.com/fpgasim/flashsim/sim"
	"github.com/fpgasim/flashsim/wire"
)

const (
	deviceCapacity = 1 << 20
	sectorBase     = 0x10000

	singleReadWords = 1000
	vectorReadWords = 1000
)

// A Rig is one complete simulated setup: engine, device, controller, and
// driver, with a seeded random array image.
type Rig struct {
	Engine sim.Engine
	Device *flash.Comp
	Core   *controller.Comp
	Driver *harness.Driver
}

// NewRig builds a rig in the given I/O mode with a reproducible random
// array image.
func NewRig(mode wire.IOMode, seed uint64) *Rig {
	engine := sim.NewClock()

	dev := flash.MakeBuilder().
		WithCapacity(deviceCapacity).
		WithProgramDelay(32).
		WithEraseDelay(256).
		Build("Flash")

	rng := rand.New(rand.NewPCG(seed, seed))
	if err := dev.LoadRand(rng, 0, deviceCapacity); err != nil {
		panic(err)
	}

	core := controller.MakeBuilder().
		WithIOMode(mode).
		WithDummyCycles(dev.DummyCycles()).
		WithPageSize(dev.PageSize()).
		Build("Ctrl")

	harness.NewTestbench(engine, core, dev)

	return &Rig{
		Engine: engine,
		Device: dev,
		Core:   core,
		Driver: harness.NewDriver(engine, core),
	}
}

// A Scenario is one named step of the suite.
type Scenario struct {
	Name string
	Run  func(r *Rig) error
}

// Scenarios returns the suite in its fixed order.
func Scenarios() []Scenario {
	return []Scenario{
		{"read-zero-word", readZeroWord},
		{"single-reads", singleReads},
		{"vector-read", vectorRead},
		{"status", status},
		{"read-id", readID},
		{"erase-sector", eraseSector},
		{"program-word", programWord},
		{"program-sector", programSector},
	}
}

// Run executes the whole suite in order. On the first failure the engine
// drains a few ticks so in-flight pad activity settles, then the error is
// returned.
func Run(r *Rig) error {
	for _, s := range Scenarios() {
		if err := s.Run(r); err != nil {
			r.Engine.TickN(8)
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}
	return nil
}

func mismatch(addr, got, want uint32) error {
	return fmt.Errorf("word at %#08x reads %#08x, expected %#08x",
		addr, got, want)
}

func verify(r *Rig, addr uint32, got uint32) error {
	want := r.Device.Word(addr)
	if got != want {
		return mismatch(addr, got, want)
	}
	return nil
}

func readZeroWord(r *Rig) error {
	r.Device.SetWord(0, 0)

	v, err := r.Driver.Read(0)
	if err != nil {
		return err
	}
	if v != 0 {
		return mismatch(0, v, 0)
	}
	return nil
}

func singleReads(r *Rig) error {
	for i := 0; i < singleReadWords; i++ {
		addr := uint32(i * 4)

		v, err := r.Driver.Read(addr)
		if err != nil {
			return err
		}
		if err := verify(r, addr, v); err != nil {
			return err
		}
	}
	return nil
}

func vectorRead(r *Rig) error {
	base := uint32(0x8000)
	buf := make([]uint32, vectorReadWords)

	if err := r.Driver.ReadV(base, buf); err != nil {
		return err
	}

	for i, v := range buf {
		addr := base + uint32(i)*4
		if err := verify(r, addr, v); err != nil {
			return err
		}
	}
	return nil
}

func status(r *Rig) error {
	sr, err := r.Driver.Status()
	if err != nil {
		return err
	}
	if sr != 0x1c {
		return fmt.Errorf("status reads %#02x, expected 0x1c", sr)
	}
	return nil
}

func readID(r *Rig) error {
	id, err := r.Driver.ReadID()
	if err != nil {
		return err
	}
	if id != 0x20BA1810 {
		return fmt.Errorf("identification reads %#08x, expected 0x20ba1810",
			id)
	}
	return nil
}

func eraseSector(r *Rig) error {
	sectorSize := r.Device.SectorSize()

	// Guard words on both sides must survive.
	r.Device.SetWord(sectorBase-4, 0x01020304)
	r.Device.SetWord(sectorBase+sectorSize, 0x05060708)

	if err := r.Driver.EraseSector(sectorBase); err != nil {
		return err
	}

	for addr := uint32(sectorBase); addr < sectorBase+sectorSize; addr += 4 {
		if v := r.Device.Word(addr); v != 0xFFFFFFFF {
			return mismatch(addr, v, 0xFFFFFFFF)
		}
	}

	if v := r.Device.Word(sectorBase - 4); v != 0x01020304 {
		return mismatch(sectorBase-4, v, 0x01020304)
	}
	if v := r.Device.Word(sectorBase + sectorSize); v != 0x05060708 {
		return mismatch(sectorBase+sectorSize, v, 0x05060708)
	}
	return nil
}

func programWord(r *Rig) error {
	err := r.Driver.PageProgram(sectorBase, []uint32{0x12345678})
	if err != nil {
		return err
	}

	v, err := r.Driver.Read(sectorBase)
	if err != nil {
		return err
	}
	if v != 0x12345678 {
		return mismatch(sectorBase, v, 0x12345678)
	}
	return nil
}

func programSector(r *Rig) error {
	if err := r.Driver.EraseSector(sectorBase); err != nil {
		return err
	}

	pageSize := r.Device.PageSize()
	sectorSize := r.Device.SectorSize()
	wordsPerPage := pageSize / 4

	for page := uint32(0); page < sectorSize/pageSize; page++ {
		base := sectorBase + page*pageSize

		buf := make([]uint32, wordsPerPage)
		for i := range buf {
			buf[i] = (base + uint32(i)*4) ^ 0xA5A5A5A5
		}

		if err := r.Driver.PageProgram(base, buf); err != nil {
			return err
		}
	}

	got := make([]uint32, sectorSize/4)
	if err := r.Driver.ReadV(sectorBase, got); err != nil {
		return err
	}

	for i, v := range got {
		addr := uint32(sectorBase) + uint32(i)*4
		if err := verify(r, addr, v); err != nil {
			return err
		}
	}
	return nil
}
