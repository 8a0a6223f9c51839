// Package harness connects a controller model to a flash device model and
// drives bus transactions against the pair. The Testbench performs the
// per-tick pad exchange between the two sides; the Driver issues bus
// transactions with bounded waits the way firmware bring-up code would.
package harness

import (
	"log"

	"github.com/fpgasim/flashsim/sim"
	"github.com/fpgasim/flashsim/wire"
)

// A Device is the serial side of the testbench: anything that reacts to chip
// select, clock, and input lanes, and answers with its own driven lanes.
type Device interface {
	Eval(csn, sck bool, in uint8) (out, outEn uint8)
}

// A Core is the bus side of the testbench: a controller exposing a register
// bus, a serial pad group, and per-tick evaluation.
type Core interface {
	Name() string
	Bus() *wire.WishboneBus
	Pads() *wire.QSPIPads
	Tick()
}

// A Testbench wires a Core to a Device on a shared engine. On every tick the
// core evaluates first, then the testbench evaluates the device on both
// levels of the serial clock, resolves the pad directions, and checks the
// handshake invariants.
type Testbench struct {
	engine sim.Engine
	core   Core
	dev    Device
}

// NewTestbench registers the core and the pad exchange on the engine, in
// that order.
func NewTestbench(engine sim.Engine, core Core, dev Device) *Testbench {
	tb := &Testbench{
		engine: engine,
		core:   core,
		dev:    dev,
	}

	engine.Register(core)
	engine.Register(tb)

	return tb
}

// Tick exchanges one tick of pad activity between the core and the device.
func (tb *Testbench) Tick() {
	pads := tb.core.Pads()
	out := pads.Out & pads.OutEn

	// Evaluate the device on both clock levels so that data launched on
	// the falling edge is observed before the rising edge samples.
	tb.dev.Eval(pads.CSn, false, out)
	devOut, devEn := tb.dev.Eval(pads.CSn, pads.SCK, out)

	if pads.OutEn&devEn != 0 {
		log.Panicf("testbench %s: both sides drive lanes %#02x",
			tb.core.Name(), pads.OutEn&devEn)
	}
	pads.In = devOut & devEn

	bus := tb.core.Bus()
	if bus.Ack && !bus.Cyc {
		log.Panicf("testbench %s: ack raised without an open bus cycle",
			tb.core.Name())
	}
}
