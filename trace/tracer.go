package trace

import (
	"github.com/fpgasim/flashsim/flash"
	"github.com/fpgasim/flashsim/sim"
)

// Table names used by the Tracer.
const (
	BusTableName     = "bus_transactions"
	CommandTableName = "flash_commands"
)

// A BusTransaction is one driver-level bus operation.
type BusTransaction struct {
	Cycle uint64
	Kind  string
	Addr  uint64
	Data  uint64
	Words int
}

// A FlashCommand is one serial command completed by the device.
type FlashCommand struct {
	Cycle  uint64
	Opcode uint64
	Name   string
	Addr   uint64
}

// A Tracer records bus transactions and flash commands. It implements
// sim.Hook so it can be attached to a flash device directly.
type Tracer struct {
	recorder Recorder
	cycles   sim.CycleTeller
}

// NewTracer creates a Tracer and its tables.
func NewTracer(recorder Recorder, cycles sim.CycleTeller) *Tracer {
	t := &Tracer{
		recorder: recorder,
		cycles:   cycles,
	}

	recorder.CreateTable(BusTableName, BusTransaction{})
	recorder.CreateTable(CommandTableName, FlashCommand{})

	return t
}

// Flush writes all buffered entries out.
func (t *Tracer) Flush() {
	t.recorder.Flush()
}

// RecordBus appends one bus transaction.
func (t *Tracer) RecordBus(kind string, addr, data uint32, words int) {
	t.recorder.InsertData(BusTableName, BusTransaction{
		Cycle: t.cycles.CurrentCycle(),
		Kind:  kind,
		Addr:  uint64(addr),
		Data:  uint64(data),
		Words: words,
	})
}

// Func records the command that ends at a device deselect.
func (t *Tracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != flash.HookPosCommandEnd {
		return
	}

	info := ctx.Item.(flash.CommandInfo)
	t.recorder.InsertData(CommandTableName, FlashCommand{
		Cycle:  t.cycles.CurrentCycle(),
		Opcode: uint64(info.Opcode),
		Name:   info.Name,
		Addr:   uint64(info.Addr),
	})
}
